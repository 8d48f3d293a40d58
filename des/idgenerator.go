package des

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate string identifiers for events. Slot ids are
// plain integers kept by the EventQueue and do not come from it.
type IDGenerator interface {
	Generate() string
}

var (
	idGeneratorMutex        sync.Mutex
	idGeneratorInstantiated bool
	idGenerator             IDGenerator
)

// UseSequentialIDGenerator configures the package-wide ID generator to
// produce small, deterministic, monotonically increasing IDs. Useful for
// reproducible test runs.
func UseSequentialIDGenerator() {
	idGeneratorMutex.Lock()
	defer idGeneratorMutex.Unlock()

	idGenerator = &sequentialIDGenerator{}
	idGeneratorInstantiated = true
}

// UseRandomIDGenerator configures the package-wide ID generator to produce
// globally unique, non-deterministic IDs suitable for tagging persisted
// trace rows across independent runs.
func UseRandomIDGenerator() {
	idGeneratorMutex.Lock()
	defer idGeneratorMutex.Unlock()

	idGenerator = &randomIDGenerator{}
	idGeneratorInstantiated = true
}

// GetIDGenerator returns the ID generator used by the current process,
// defaulting to the sequential generator on first use.
func GetIDGenerator() IDGenerator {
	idGeneratorMutex.Lock()
	defer idGeneratorMutex.Unlock()

	if !idGeneratorInstantiated {
		idGenerator = &sequentialIDGenerator{}
		idGeneratorInstantiated = true
	}

	return idGenerator
}

type sequentialIDGenerator struct {
	next uint64
}

func (g *sequentialIDGenerator) Generate() string {
	n := atomic.AddUint64(&g.next, 1)
	return strconv.FormatUint(n, 10)
}

type randomIDGenerator struct{}

func (randomIDGenerator) Generate() string {
	return xid.New().String()
}
