package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/internal/mocks"
	"github.com/brettbedarf/tecnicofs/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fillBacklogT(t *testing.T, cmds ...tecnicofs.Command) *queue.Backlog {
	t.Helper()
	bl := queue.NewBacklog(len(cmds))
	for _, c := range cmds {
		require.NoError(t, bl.Enqueue(c))
	}
	return bl
}

func TestPool_DrainsSource(t *testing.T) {
	t.Parallel()

	const n = 40
	tree := &mocks.MockTree{}
	tree.On("Lookup", mock.Anything).Return(0, nil)

	cmds := make([]tecnicofs.Command, n)
	for i := range cmds {
		cmds[i] = tecnicofs.Command{Seq: uint64(i + 1), Op: tecnicofs.OpLookup, Path: fmt.Sprintf("/n%d", i)}
	}

	var (
		mu   sync.Mutex
		seen = map[uint64]bool{}
	)
	p := &Pool{
		Size:       4,
		Source:     fillBacklogT(t, cmds...),
		Dispatcher: NewFine(tree),
		OnResult: func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			seen[r.Cmd.Seq] = true
		},
	}

	require.NoError(t, p.Run())
	assert.Len(t, seen, n)
	tree.AssertNumberOfCalls(t, "Lookup", n)
}

func TestPool_ContractViolation(t *testing.T) {
	t.Parallel()

	tree := &mocks.MockTree{}
	tree.On("Lookup", "/ok").Return(0, nil)

	src := fillBacklogT(t,
		tecnicofs.Command{Seq: 1, Op: tecnicofs.OpLookup, Path: "/ok"},
		tecnicofs.Command{Seq: 2, Op: tecnicofs.Opcode('z'), Path: "/bad"},
		tecnicofs.Command{Seq: 3, Op: tecnicofs.OpLookup, Path: "/ok"},
	)

	var fatal []error
	p := &Pool{
		Size:       1,
		Source:     src,
		Dispatcher: NewCoarse(tree),
		OnFatal:    func(err error) { fatal = append(fatal, err) },
	}

	err := p.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContractViolation)
	require.Len(t, fatal, 1)
	assert.ErrorIs(t, fatal[0], ErrContractViolation)

	tree.AssertNumberOfCalls(t, "Lookup", 1)
	assert.True(t, src.Dequeue().IsSentinel(), "source must be aborted")
}

func TestPool_ContractViolationReleasesProducer(t *testing.T) {
	t.Parallel()

	q := queue.New(1)
	p := &Pool{
		Size:       2,
		Source:     q,
		Dispatcher: NewFine(&mocks.MockTree{}),
	}

	prodErr := make(chan error, 1)
	go func() {
		bad := tecnicofs.Command{Op: tecnicofs.OpDelete, Path: "/a", Kind: tecnicofs.KindFile}
		for range 100 {
			if err := q.Enqueue(bad); err != nil {
				prodErr <- err
				return
			}
		}
		prodErr <- nil
	}()

	assert.ErrorIs(t, p.Run(), ErrContractViolation)
	assert.ErrorIs(t, <-prodErr, queue.ErrAborted, "blocked producer must be released")
}
