package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"clinicaja/internal/repository"

	"gorm.io/gorm"
)

// PrefijoNumero is the fixed head of every shift number: SHIFT-<year>-<seq>.
const PrefijoNumero = "SHIFT"

// SecuenciaTurnos hands out human-readable shift numbers. It keeps no state of
// its own; the next value is always derived from what is stored.
type SecuenciaTurnos struct {
	repo repository.TurnoRepository
}

func NewSecuenciaTurnos(repo repository.TurnoRepository) *SecuenciaTurnos {
	return &SecuenciaTurnos{repo: repo}
}

// Siguiente returns the next number for year. It must run inside the same
// transaction that inserts the shift: the advisory lock it takes is released
// on commit, and the unique index on numero catches anything that slips by.
func (s *SecuenciaTurnos) Siguiente(ctx context.Context, tx *gorm.DB, year int) (string, error) {
	prefijo := prefijoAnio(year)
	if err := s.repo.LockSecuencia(ctx, tx, prefijo); err != nil {
		return "", err
	}
	max, err := s.repo.MaxNumero(ctx, tx, prefijo)
	if err != nil {
		return "", err
	}
	return FormatearNumero(year, sufijoNumero(max, prefijo)+1), nil
}

// FormatearNumero renders SHIFT-<year>-<5-digit seq>.
func FormatearNumero(year, seq int) string {
	return fmt.Sprintf("%s%05d", prefijoAnio(year), seq)
}

func prefijoAnio(year int) string {
	return fmt.Sprintf("%s-%d-", PrefijoNumero, year)
}

// sufijoNumero parses the numeric tail of numero. Anything malformed counts as 0.
func sufijoNumero(numero, prefijo string) int {
	if !strings.HasPrefix(numero, prefijo) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(numero, prefijo))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
