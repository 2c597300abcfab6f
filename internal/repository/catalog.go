package repository

import (
	"strings"
	"sync"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	"github.com/wekabeka1996/aurora/internal/domain/repository"
)

// StaticCatalog is an in-memory instrument catalog loaded from config.
// Lookup is case-insensitive on symbol.
type StaticCatalog struct {
	mu          sync.RWMutex
	instruments map[string]models.Instrument
}

func NewStaticCatalog(instruments []models.Instrument) repository.InstrumentCatalog {
	c := &StaticCatalog{instruments: make(map[string]models.Instrument, len(instruments))}
	for _, inst := range instruments {
		c.instruments[strings.ToUpper(inst.Symbol)] = inst
	}
	return c
}

func (c *StaticCatalog) Lookup(symbol string) (models.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instruments[strings.ToUpper(symbol)]
	return inst, ok
}
