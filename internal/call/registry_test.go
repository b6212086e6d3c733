package call

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sttmock "github.com/haulvox/haulvox/pkg/stt/mock"
	ttsmock "github.com/haulvox/haulvox/pkg/tts/mock"
)

func registryCall(t *testing.T) (*Call, *fakeCarrier) {
	t.Helper()
	carrier := &fakeCarrier{sid: "CA-reg-1"}
	c, err := New(Request{To: "+15550002222"}, Config{
		Carrier:       carrier,
		STT:           &sttmock.Provider{},
		TTS:           &ttsmock.Provider{},
		LLM:           &fakeLLM{},
		PublicBaseURL: "https://dispatch.example.com",
	})
	require.NoError(t, err)
	return c, carrier
}

func TestRegistry_LookupByBothIdentifiers(t *testing.T) {
	r := NewRegistry(time.Minute)
	c, _ := registryCall(t)
	require.NoError(t, c.Start(context.Background()))

	r.Register(c)

	got, ok := r.Lookup(c.ID())
	require.True(t, ok)
	assert.Same(t, c, got)

	got, ok = r.Lookup("CA-reg-1")
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistry_LinkCarrierAfterRegister(t *testing.T) {
	r := NewRegistry(time.Minute)
	c, _ := registryCall(t)
	r.Register(c)

	_, ok := r.Lookup("CA-late")
	assert.False(t, ok)

	r.LinkCarrier("CA-late", c)
	got, ok := r.Lookup("CA-late")
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestRegistry_WaitReleasesOnRegister(t *testing.T) {
	r := NewRegistry(time.Minute)
	c, _ := registryCall(t)

	ready := r.Wait(c.ID())
	select {
	case <-ready:
		t.Fatal("Wait released before the call was registered")
	default:
	}

	r.Register(c)
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("Register did not release the waiter")
	}

	// An id that is already indexed resolves without blocking.
	select {
	case <-r.Wait(c.ID()):
	default:
		t.Fatal("Wait for a registered id must return a closed channel")
	}
}

func TestRegistry_WaitReleasesOnLinkCarrier(t *testing.T) {
	r := NewRegistry(time.Minute)
	c, _ := registryCall(t)
	r.Register(c)

	ready := r.Wait("CA-linked-later")
	r.LinkCarrier("CA-linked-later", c)
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("LinkCarrier did not release the waiter")
	}
}

func TestRegistry_RetainsEndedCallsForWindow(t *testing.T) {
	r := NewRegistry(30 * time.Millisecond)
	c, _ := registryCall(t)
	require.NoError(t, c.Start(context.Background()))
	r.Register(c)

	c.End("done")
	r.MarkEnded(c)

	// Still queryable inside the retention window.
	_, ok := r.Lookup(c.ID())
	assert.True(t, ok)

	waitCall(t, "registry eviction", func() bool {
		_, ok := r.Lookup(c.ID())
		return !ok
	})
	_, ok = r.Lookup("CA-reg-1")
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}
