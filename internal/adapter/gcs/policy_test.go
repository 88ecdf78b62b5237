package gcs

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	attrs       storage.BucketAttrs
	granted     []string
	attrsErr    error
	permErr     error
	updateErr   error
	updates     []storage.BucketAttrsToUpdate
	updateMetas []int64
}

func (f *fakeBucket) Attrs(_ context.Context) (*storage.BucketAttrs, error) {
	if f.attrsErr != nil {
		return nil, f.attrsErr
	}
	a := f.attrs
	return &a, nil
}

func (f *fakeBucket) Update(_ context.Context, metageneration int64, u storage.BucketAttrsToUpdate) (*storage.BucketAttrs, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, u)
	f.updateMetas = append(f.updateMetas, metageneration)
	if u.Lifecycle != nil {
		f.attrs.Lifecycle = *u.Lifecycle
	}
	f.attrs.MetaGeneration++
	a := f.attrs
	return &a, nil
}

func (f *fakeBucket) TestPermissions(_ context.Context, perms []string) ([]string, error) {
	if f.permErr != nil {
		return nil, f.permErr
	}
	var out []string
	for _, p := range perms {
		for _, g := range f.granted {
			if p == g {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func newTestPolicy(b *fakeBucket) *BucketPolicy {
	return &BucketPolicy{name: "deliverables", bucket: b}
}

func archiveRule() storage.LifecycleRule {
	return storage.LifecycleRule{
		Action:    storage.LifecycleAction{Type: storage.SetStorageClassAction, StorageClass: "ARCHIVE"},
		Condition: storage.LifecycleCondition{AgeInDays: 30},
	}
}

func TestCheck_Compliant(t *testing.T) {
	b := &fakeBucket{
		attrs:   storage.BucketAttrs{Lifecycle: storage.Lifecycle{Rules: []storage.LifecycleRule{archiveRule(), ExpiryRule()}}},
		granted: RequiredPermissions,
	}

	status, err := newTestPolicy(b).Check(context.Background())
	require.NoError(t, err)

	assert.True(t, status.LifecycleCompliant)
	assert.True(t, status.Writable())
	assert.True(t, status.OK())
	assert.Empty(t, status.MissingPermissions)
	assert.Equal(t, []string{"SetStorageClass(ARCHIVE) age>=30d", "Delete age>=1d"}, status.LifecycleRules)
}

func TestCheck_MissingRuleAndPermission(t *testing.T) {
	b := &fakeBucket{granted: []string{"storage.objects.get"}}

	status, err := newTestPolicy(b).Check(context.Background())
	require.NoError(t, err)

	assert.False(t, status.LifecycleCompliant)
	assert.False(t, status.Writable())
	assert.False(t, status.OK())
	assert.Equal(t, []string{"storage.objects.create", "storage.objects.delete"}, status.MissingPermissions)
}

func TestCheck_Errors(t *testing.T) {
	boom := errors.New("forbidden")

	_, err := newTestPolicy(&fakeBucket{attrsErr: boom}).Check(context.Background())
	require.ErrorIs(t, err, boom)

	_, err = newTestPolicy(&fakeBucket{permErr: boom}).Check(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestHasExpiryRule(t *testing.T) {
	scoped := ExpiryRule()
	scoped.Condition.MatchesPrefix = []string{"tmp/"}

	week := ExpiryRule()
	week.Condition.AgeInDays = 7

	withCondition := func(f func(c *storage.LifecycleCondition)) storage.LifecycleRule {
		r := ExpiryRule()
		f(&r.Condition)
		return r
	}
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		rules []storage.LifecycleRule
		want  bool
	}{
		{"none", nil, false},
		{"expiry", []storage.LifecycleRule{ExpiryRule()}, true},
		{"prefix scoped", []storage.LifecycleRule{scoped}, false},
		{"too old", []storage.LifecycleRule{week}, false},
		{"other action", []storage.LifecycleRule{archiveRule()}, false},
		{"days since custom time", []storage.LifecycleRule{withCondition(func(c *storage.LifecycleCondition) { c.DaysSinceCustomTime = 1 })}, false},
		{"custom time before", []storage.LifecycleRule{withCondition(func(c *storage.LifecycleCondition) { c.CustomTimeBefore = cutoff })}, false},
		{"days since noncurrent", []storage.LifecycleRule{withCondition(func(c *storage.LifecycleCondition) { c.DaysSinceNoncurrentTime = 1 })}, false},
		{"noncurrent time before", []storage.LifecycleRule{withCondition(func(c *storage.LifecycleCondition) { c.NoncurrentTimeBefore = cutoff })}, false},
		{"scoped plus global", []storage.LifecycleRule{withCondition(func(c *storage.LifecycleCondition) { c.DaysSinceCustomTime = 1 }), ExpiryRule()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasExpiryRule(storage.Lifecycle{Rules: tt.rules}))
		})
	}
}

func TestEnsureLifecycle_AddsRuleOnce(t *testing.T) {
	b := &fakeBucket{attrs: storage.BucketAttrs{
		MetaGeneration: 7,
		Lifecycle:      storage.Lifecycle{Rules: []storage.LifecycleRule{archiveRule()}},
	}}
	p := newTestPolicy(b)

	changed, err := p.EnsureLifecycle(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, b.updates, 1)
	assert.Equal(t, []int64{7}, b.updateMetas)
	assert.Equal(t, []storage.LifecycleRule{archiveRule(), ExpiryRule()}, b.attrs.Lifecycle.Rules)

	changed, err = p.EnsureLifecycle(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, b.updates, 1, "second call must not update")
	assert.Len(t, b.attrs.Lifecycle.Rules, 2)
}

func TestEnsureLifecycle_UpdateError(t *testing.T) {
	boom := errors.New("precondition failed")
	b := &fakeBucket{updateErr: boom}

	changed, err := newTestPolicy(b).EnsureLifecycle(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, changed)
}
