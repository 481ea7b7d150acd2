package preset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/preset"
	"auditcore/pkg/domain"
)

type stubStore struct {
	calls   int
	org     *domain.Preset
	deflt   *domain.Preset
	loadErr error
}

func (s *stubStore) Load(ctx context.Context, name string, organizationID domain.OrganizationID) (*domain.Preset, *domain.Preset, error) {
	s.calls++
	return s.org, s.deflt, s.loadErr
}

func TestResolve_OrgOverridesDefault(t *testing.T) {
	store := &stubStore{
		deflt: &domain.Preset{Name: "login", Action: "auth.login"},
		org:   &domain.Preset{Name: "login", OrganizationID: "org-1", Action: "auth.login.custom"},
	}
	r := preset.New(store, 10)

	got, err := r.Resolve(context.Background(), "login", "org-1")
	require.NoError(t, err)
	assert.Equal(t, "auth.login.custom", got.Action)
}

func TestResolve_CachesResult(t *testing.T) {
	store := &stubStore{deflt: &domain.Preset{Name: "login", Action: "auth.login"}}
	r := preset.New(store, 10)

	_, err := r.Resolve(context.Background(), "login", "")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "login", "")
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls)
}

func TestResolve_LRUEviction(t *testing.T) {
	store := &stubStore{deflt: &domain.Preset{Name: "p", Action: "a"}}
	r := preset.New(store, 1)

	_, err := r.Resolve(context.Background(), "p", "org-a")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "p", "org-b")
	require.NoError(t, err)

	// org-a was evicted by the capacity-1 cache; resolving it again must
	// hit the store a second time.
	_, err = r.Resolve(context.Background(), "p", "org-a")
	require.NoError(t, err)

	assert.Equal(t, 3, store.calls)
}

func TestResolve_NeitherPresetExists(t *testing.T) {
	store := &stubStore{}
	r := preset.New(store, 10)

	got, err := r.Resolve(context.Background(), "missing", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
