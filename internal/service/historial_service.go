package service

import (
	"context"
	"fmt"
	"strings"

	"clinicaja/internal/dto"
	"clinicaja/internal/model"
	"clinicaja/internal/repository"
)

const defaultMaxPageSize = 100

type HistorialService interface {
	Listar(ctx context.Context, filter dto.TurnoFilter) (*dto.HistorialTurnosResponse, error)
}

type historialService struct {
	repo        repository.TurnoRepository
	maxPageSize int
}

func NewHistorialService(repo repository.TurnoRepository, maxPageSize int) HistorialService {
	if maxPageSize <= 0 {
		maxPageSize = defaultMaxPageSize
	}
	return &historialService{repo: repo, maxPageSize: maxPageSize}
}

func (s *historialService) Listar(ctx context.Context, filter dto.TurnoFilter) (*dto.HistorialTurnosResponse, error) {
	if filter.Page < 1 {
		return nil, fmt.Errorf("page debe ser >= 1: %w", model.ErrValidacion)
	}
	if filter.PageSize < 1 || filter.PageSize > s.maxPageSize {
		return nil, fmt.Errorf("page_size debe estar entre 1 y %d: %w", s.maxPageSize, model.ErrValidacion)
	}
	filter.Estado = strings.ToUpper(strings.TrimSpace(filter.Estado))
	switch filter.Estado {
	case "", model.EstadoAbierto, model.EstadoCerrado, model.EstadoAnulado:
	default:
		return nil, fmt.Errorf("estado %q desconocido: %w", filter.Estado, model.ErrValidacion)
	}
	if filter.Desde != nil && filter.Hasta != nil && filter.Desde.After(*filter.Hasta) {
		return nil, fmt.Errorf("desde posterior a hasta: %w", model.ErrValidacion)
	}

	turnos, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]dto.TurnoResponse, 0, len(turnos))
	for i := range turnos {
		items = append(items, turnoToResponse(&turnos[i]))
	}
	totalPages := int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))
	return &dto.HistorialTurnosResponse{
		Items: items,
		Pagination: dto.PaginationResponse{
			Page:       filter.Page,
			PageSize:   filter.PageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}
