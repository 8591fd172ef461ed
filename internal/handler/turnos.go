package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"clinicaja/internal/apierror"
	"clinicaja/internal/dto"
	"clinicaja/internal/middleware"
	"clinicaja/internal/model"
	"clinicaja/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultPageSize = 20

type TurnosHandler struct {
	svc       service.TurnoService
	historial service.HistorialService
}

func NewTurnosHandler(svc service.TurnoService, historial service.HistorialService) *TurnosHandler {
	return &TurnosHandler{svc: svc, historial: historial}
}

// Abrir godoc
// @Summary Abre un turno de caja para el usuario autenticado
// @Tags turnos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirTurnoRequest true "Datos de apertura"
// @Success 201 {object} dto.TurnoResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/turnos [post]
func (h *TurnosHandler) Abrir(c *gin.Context) {
	var req dto.AbrirTurnoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), middleware.OperadorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// MiTurno godoc
// @Summary Devuelve el turno abierto del usuario autenticado
// @Tags turnos
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.TurnoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/turnos/mio [get]
func (h *TurnosHandler) MiTurno(c *gin.Context) {
	resp, err := h.svc.MiTurnoAbierto(c.Request.Context(), middleware.OperadorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, apierror.New(apierror.CodeNoEncontrado, "Sin turno abierto"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarPago godoc
// @Summary Registra un pago en un turno abierto
// @Tags turnos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del turno"
// @Param body body dto.RegistrarPagoRequest true "Pago"
// @Success 201 {object} dto.PagoResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/turnos/{id}/pagos [post]
func (h *TurnosHandler) RegistrarPago(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.RegistrarPagoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarPago(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Resumen godoc
// @Summary Totales en vivo y efectivo esperado de un turno
// @Tags turnos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del turno"
// @Success 200 {object} dto.ResumenTurnoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/turnos/{id}/resumen [get]
func (h *TurnosHandler) Resumen(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Resumen(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cerrar godoc
// @Summary Cierra el turno y concilia el efectivo contado
// @Description Si no se indica responsable, se toma el usuario autenticado.
// @Tags turnos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del turno"
// @Param body body dto.CerrarTurnoRequest true "Cierre"
// @Success 200 {object} dto.CierreTurnoResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/turnos/{id}/cerrar [post]
func (h *TurnosHandler) Cerrar(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.CerrarTurnoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.ResponsableID == nil {
		claims := middleware.GetClaims(c)
		req.ResponsableID = &claims.UserID
		if req.ResponsableNombre == nil {
			nombre := claims.Nombre
			if nombre == "" {
				nombre = claims.Username
			}
			req.ResponsableNombre = &nombre
		}
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Anular godoc
// @Summary Anula un turno abierto sin pagos
// @Tags turnos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del turno"
// @Param body body dto.AnularTurnoRequest false "Motivo"
// @Success 200 {object} dto.TurnoResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/turnos/{id}/anular [post]
func (h *TurnosHandler) Anular(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.AnularTurnoRequest
	// the body is optional
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Anular(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary Historial paginado de turnos
// @Tags turnos
// @Produce json
// @Security BearerAuth
// @Param operador_id query string false "Operador"
// @Param estado query string false "OPEN | CLOSED | ANNULLED"
// @Param desde query string false "Apertura desde (RFC3339 o YYYY-MM-DD, inclusive)"
// @Param hasta query string false "Apertura hasta (RFC3339 o YYYY-MM-DD, exclusivo)"
// @Param page query int false "Página" default(1)
// @Param page_size query int false "Tamaño de página" default(20)
// @Success 200 {object} dto.HistorialTurnosResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/turnos [get]
func (h *TurnosHandler) Listar(c *gin.Context) {
	filter, err := parseTurnoFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.historial.Listar(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidacion, "ID inválido"))
		return uuid.Nil, false
	}
	return id, true
}

func parseTurnoFilter(c *gin.Context) (dto.TurnoFilter, error) {
	f := dto.TurnoFilter{Estado: c.Query("estado")}

	var err error
	if f.Page, err = queryInt(c, "page", 1); err != nil {
		return f, err
	}
	if f.PageSize, err = queryInt(c, "page_size", defaultPageSize); err != nil {
		return f, err
	}
	if raw := c.Query("operador_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, fmt.Errorf("operador_id inválido: %w", model.ErrValidacion)
		}
		f.OperadorID = &id
	}
	if f.Desde, err = queryTime(c, "desde"); err != nil {
		return f, err
	}
	if f.Hasta, err = queryTime(c, "hasta"); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s debe ser numérico: %w", key, model.ErrValidacion)
	}
	return n, nil
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s: fecha inválida %q: %w", key, raw, model.ErrValidacion)
}
