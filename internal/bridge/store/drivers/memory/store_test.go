package memory_test

import (
	"testing"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/memory"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.NewStore()
	}, storetest.Options{Concurrent: true})
}
