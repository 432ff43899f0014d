package pool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellstore/cellstore/internal/pool"
)

func TestRentReturnsAtLeastRequestedSize(t *testing.T) {
	p := pool.New()
	b := p.Rent(100)
	require.GreaterOrEqual(t, len(b), 100)
}

func TestRentZeroesReusedBuffers(t *testing.T) {
	p := pool.New()
	b := p.Rent(64)
	for i := range b {
		b[i] = 0xFF
	}
	p.Return(b)

	b2 := p.Rent(64)
	for _, v := range b2 {
		require.Equal(t, byte(0), v)
	}
}

func TestRentOversizeBypassesPool(t *testing.T) {
	p := pool.New()
	b := p.Rent(1 << 24) // larger than maxBucketShift
	require.Equal(t, 1<<24, len(b))
}

func TestReturnEmptyOrForeignBufferIsNoop(t *testing.T) {
	p := pool.New()
	p.Return(nil)
	p.Return(make([]byte, 3)) // not a power-of-two bucket size
}

func TestRentNonPositiveSizeClampsToOne(t *testing.T) {
	p := pool.New()
	b := p.Rent(0)
	require.GreaterOrEqual(t, len(b), 1)
}
