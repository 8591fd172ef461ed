//go:build integration

package repository_test

// Integration tests against a real Postgres started with testcontainers.
// Run with: go test -tags integration ./internal/repository/... -v
//
// They cover what the in-memory store can only imitate: the partial unique
// index on open shifts, advisory-lock numbering, and row locks between
// payments and close.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"clinicaja/internal/dto"
	"clinicaja/internal/infra"
	"clinicaja/internal/model"
	"clinicaja/internal/repository"
	"clinicaja/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("clinicaja_test"),
		tcPostgres.WithUsername("clinicaja"),
		tcPostgres.WithPassword("clinicaja"),
		tcPostgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "postgres container:", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() { _ = testcontainers.TerminateContainer(pgC) }()

		dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintln(os.Stderr, "connection string:", err)
			return 1
		}
		testDB, err = infra.NewDatabase(dsn)
		if err != nil {
			fmt.Fprintln(os.Stderr, "connect:", err)
			return 1
		}
		if err := infra.RunMigrations(testDB); err != nil {
			fmt.Fprintln(os.Stderr, "migrations:", err)
			return 1
		}
		return m.Run()
	}()
	os.Exit(code)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type entorno struct {
	turnos repository.TurnoRepository
	pagos  repository.PagoRepository
	svc    service.TurnoService
}

func nuevoEntorno(t *testing.T) entorno {
	t.Helper()
	require.NoError(t, testDB.Exec("TRUNCATE pagos_turno, turnos_caja").Error)
	turnos := repository.NewTurnoRepository(testDB)
	pagos := repository.NewPagoRepository(testDB)
	return entorno{
		turnos: turnos,
		pagos:  pagos,
		svc:    service.NewTurnoService(turnos, pagos, nil, service.TurnoOptions{MaxReintentosNumero: 10}),
	}
}

func turnoAbierto(operador uuid.UUID, numero string) *model.TurnoCaja {
	return &model.TurnoCaja{
		ID:            uuid.New(),
		Numero:        numero,
		OperadorID:    operador,
		Estado:        model.EstadoAbierto,
		MontoApertura: decimal.NewFromInt(100),
		OpenedAt:      time.Now().UTC(),
	}
}

// ── Constraints ──────────────────────────────────────────────────────────────

func TestTurnoRepo_UnSoloTurnoAbiertoPorOperador(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	operador := uuid.New()

	primero := turnoAbierto(operador, "SHIFT-2025-00001")
	require.NoError(t, env.turnos.Create(ctx, nil, primero))

	err := env.turnos.Create(ctx, nil, turnoAbierto(operador, "SHIFT-2025-00002"))
	assert.ErrorIs(t, err, model.ErrConflicto)

	now := time.Now().UTC()
	primero.Estado = model.EstadoAnulado
	primero.ClosedAt = &now
	require.NoError(t, env.turnos.Finalizar(ctx, nil, primero))

	assert.NoError(t, env.turnos.Create(ctx, nil, turnoAbierto(operador, "SHIFT-2025-00003")))
}

func TestTurnoRepo_NumeroDuplicado(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	require.NoError(t, env.turnos.Create(ctx, nil, turnoAbierto(uuid.New(), "SHIFT-2025-00001")))

	err := env.turnos.Create(ctx, nil, turnoAbierto(uuid.New(), "SHIFT-2025-00001"))
	assert.ErrorIs(t, err, repository.ErrNumeroDuplicado)
	assert.False(t, errors.Is(err, model.ErrConflicto))
}

func TestTurnoRepo_FinalizarEsCondicional(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	turno := turnoAbierto(uuid.New(), "SHIFT-2025-00001")
	require.NoError(t, env.turnos.Create(ctx, nil, turno))

	now := time.Now().UTC()
	turno.Estado = model.EstadoAnulado
	turno.ClosedAt = &now
	require.NoError(t, env.turnos.Finalizar(ctx, nil, turno))

	turno.Estado = model.EstadoCerrado
	assert.ErrorIs(t, env.turnos.Finalizar(ctx, nil, turno), model.ErrEstadoInvalido)

	stored, err := env.turnos.FindByID(ctx, turno.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EstadoAnulado, stored.Estado)
}

func TestTurnoRepo_MaxNumero(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	for _, n := range []string{"SHIFT-2025-00009", "SHIFT-2025-00010", "SHIFT-2025-ABC", "SHIFT-2024-00500", "SHIFT-2025-00002"} {
		require.NoError(t, env.turnos.Create(ctx, nil, turnoAbierto(uuid.New(), n)))
	}

	max, err := env.turnos.MaxNumero(ctx, nil, "SHIFT-2025-")
	require.NoError(t, err)
	assert.Equal(t, "SHIFT-2025-00010", max)

	max, err = env.turnos.MaxNumero(ctx, nil, "SHIFT-2026-")
	require.NoError(t, err)
	assert.Empty(t, max)
}

func TestPagoRepo_Restricciones(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	turno := turnoAbierto(uuid.New(), "SHIFT-2025-00001")
	require.NoError(t, env.turnos.Create(ctx, nil, turno))

	err := env.pagos.Create(ctx, nil, &model.PagoTurno{ID: uuid.New(), TurnoID: turno.ID, Monto: decimal.Zero, Metodo: model.MetodoEfectivo, RecordedAt: time.Now()})
	assert.ErrorIs(t, err, model.ErrValidacion)

	err = env.pagos.Create(ctx, nil, &model.PagoTurno{ID: uuid.New(), TurnoID: uuid.New(), Monto: decimal.NewFromInt(1), Metodo: model.MetodoEfectivo, RecordedAt: time.Now()})
	assert.ErrorIs(t, err, model.ErrNoEncontrado)

	// NUMERIC(12,2) overflow
	err = env.pagos.Create(ctx, nil, &model.PagoTurno{ID: uuid.New(), TurnoID: turno.ID, Monto: decimal.New(1, 10), Metodo: model.MetodoEfectivo, RecordedAt: time.Now()})
	assert.ErrorIs(t, err, model.ErrValidacion)
}

func TestPagoRepo_SumByTurno(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	turno := turnoAbierto(uuid.New(), "SHIFT-2025-00001")
	require.NoError(t, env.turnos.Create(ctx, nil, turno))

	total, err := env.pagos.SumByTurno(ctx, nil, turno.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	for _, m := range []string{"10.25", "0.75", "9999999999.99"} {
		require.NoError(t, env.pagos.Create(ctx, nil, &model.PagoTurno{ID: uuid.New(), TurnoID: turno.ID, Monto: decimal.RequireFromString(m), Metodo: model.MetodoTarjeta, RecordedAt: time.Now()}))
	}
	total, err = env.pagos.SumByTurno(ctx, nil, turno.ID)
	require.NoError(t, err)
	assert.Equal(t, "10000000010.99", total.StringFixed(2))
}

// ── Service over Postgres ────────────────────────────────────────────────────

func TestTurnoService_NumeracionConcurrenteSinHuecos(t *testing.T) {
	env := nuevoEntorno(t)
	const n = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numeros = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := env.svc.Abrir(context.Background(), uuid.New(), dto.AbrirTurnoRequest{})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numeros[resp.Numero] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	year := time.Now().Year()
	require.Len(t, numeros, n)
	for i := 1; i <= n; i++ {
		assert.True(t, numeros[service.FormatearNumero(year, i)], "falta %d", i)
	}
}

func TestTurnoService_AperturaConcurrenteMismoOperador(t *testing.T) {
	env := nuevoEntorno(t)
	operador := uuid.New()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		exitos int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Abrir(context.Background(), operador, dto.AbrirTurnoRequest{})
			if err == nil {
				mu.Lock()
				exitos++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, model.ErrConflicto)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, exitos)
}

func TestTurnoService_PagosContraCierre(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	turno, err := env.svc.Abrir(ctx, uuid.New(), dto.AbrirTurnoRequest{MontoApertura: decimal.NewFromInt(100)})
	require.NoError(t, err)
	turnoID := uuid.MustParse(turno.ID)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		aceptados int
	)
	inicio := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-inicio
			_, err := env.svc.RegistrarPago(ctx, turnoID, dto.RegistrarPagoRequest{Monto: decimal.NewFromInt(10), Metodo: "CASH"})
			if err == nil {
				mu.Lock()
				aceptados++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, model.ErrEstadoInvalido)
		}()
	}
	var cierre *dto.CierreTurnoResponse
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-inicio
		var err error
		cierre, err = env.svc.Cerrar(ctx, turnoID, dto.CerrarTurnoRequest{EfectivoContado: decimal.NewFromInt(100)})
		assert.NoError(t, err)
	}()
	close(inicio)
	wg.Wait()

	require.NotNil(t, cierre)
	ledger, err := env.pagos.CountByTurno(ctx, nil, turnoID)
	require.NoError(t, err)
	// every accepted payment is in the snapshot, and nothing landed after it
	assert.Equal(t, int64(aceptados), ledger)
	assert.Equal(t, aceptados, cierre.Reporte.Totales.Cantidad)
	assert.True(t, decimal.NewFromInt(int64(100+10*aceptados)).Equal(cierre.Reporte.EfectivoEsperado))
}

func TestTurnoService_CierreConcurrente(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	turno, err := env.svc.Abrir(ctx, uuid.New(), dto.AbrirTurnoRequest{})
	require.NoError(t, err)
	turnoID := uuid.MustParse(turno.ID)

	errs := make(chan error, 2)
	for _, contado := range []int64{0, 5} {
		go func(contado int64) {
			_, err := env.svc.Cerrar(ctx, turnoID, dto.CerrarTurnoRequest{EfectivoContado: decimal.NewFromInt(contado)})
			errs <- err
		}(contado)
	}
	var exitos, invalidos int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			exitos++
		case errors.Is(err, model.ErrEstadoInvalido):
			invalidos++
		default:
			t.Errorf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, exitos)
	assert.Equal(t, 1, invalidos)
}

func TestTurnoService_ResumenPosteriorIgualAlSnapshot(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	turno, err := env.svc.Abrir(ctx, uuid.New(), dto.AbrirTurnoRequest{MontoApertura: decimal.RequireFromString("50.50")})
	require.NoError(t, err)
	turnoID := uuid.MustParse(turno.ID)
	for _, p := range []struct{ monto, metodo string }{{"10.25", "CASH"}, {"99.99", "obra social"}, {"5", "cheque"}} {
		_, err := env.svc.RegistrarPago(ctx, turnoID, dto.RegistrarPagoRequest{Monto: decimal.RequireFromString(p.monto), Metodo: p.metodo})
		require.NoError(t, err)
	}
	_, err = env.svc.Cerrar(ctx, turnoID, dto.CerrarTurnoRequest{EfectivoContado: decimal.RequireFromString("60.75")})
	require.NoError(t, err)

	resumen, err := env.svc.Resumen(ctx, turnoID)
	require.NoError(t, err)
	require.NotNil(t, resumen.Turno.Totales)
	assert.Equal(t, resumen.Turno.Totales.Cantidad, resumen.Totales.Cantidad)
	assert.True(t, resumen.Turno.Totales.Total.Equal(resumen.Totales.Total))
	for metodo, v := range resumen.Totales.PorMetodo {
		assert.True(t, v.Equal(resumen.Turno.Totales.PorMetodo[metodo]), metodo)
	}
	assert.True(t, resumen.Turno.Diferencia.IsZero())
}

// ── Historial / outbox ───────────────────────────────────────────────────────

func TestTurnoRepo_ListYOutbox(t *testing.T) {
	env := nuevoEntorno(t)
	ctx := context.Background()
	operador := uuid.New()
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		turno := turnoAbierto(operador, service.FormatearNumero(2025, i+1))
		turno.OpenedAt = base.AddDate(0, 0, i)
		require.NoError(t, env.turnos.Create(ctx, nil, turno))
		closed := turno.OpenedAt.Add(8 * time.Hour)
		turno.Estado = model.EstadoAnulado
		turno.ClosedAt = &closed
		require.NoError(t, env.turnos.Finalizar(ctx, nil, turno))
		ids = append(ids, turno.ID)
	}

	turnos, total, err := env.turnos.List(ctx, dto.TurnoFilter{OperadorID: &operador, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, turnos, 2)
	assert.Equal(t, "SHIFT-2025-00003", turnos[0].Numero)

	desde := base.AddDate(0, 0, 1)
	turnos, total, err = env.turnos.List(ctx, dto.TurnoFilter{Desde: &desde, Estado: model.EstadoAnulado, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, turnos, 2)

	pendientes, err := env.turnos.ListSinPublicar(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pendientes, 3)
	assert.Equal(t, ids[0], pendientes[0].ID)

	require.NoError(t, env.turnos.MarcarPublicado(ctx, ids[0], time.Now()))
	pendientes, err = env.turnos.ListSinPublicar(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pendientes, 2)
}
