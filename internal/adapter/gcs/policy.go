// Package gcs checks and enforces the Cloud Storage bucket contract the
// analyser relies on: objects expire after 24 hours and the service account
// can write, read and delete them.
package gcs

import (
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/storage"
)

// ExpiryAgeDays is the object age at which the lifecycle rule deletes products.
const ExpiryAgeDays = 1

// RequiredPermissions are the IAM permissions the service account needs.
var RequiredPermissions = []string{
	"storage.objects.create",
	"storage.objects.get",
	"storage.objects.delete",
}

// bucketAPI is the subset of *storage.BucketHandle the policy uses.
type bucketAPI interface {
	Attrs(ctx context.Context) (*storage.BucketAttrs, error)
	Update(ctx context.Context, metageneration int64, uattrs storage.BucketAttrsToUpdate) (*storage.BucketAttrs, error)
	TestPermissions(ctx context.Context, perms []string) ([]string, error)
}

type bucketHandle struct {
	h *storage.BucketHandle
}

func (b bucketHandle) Attrs(ctx context.Context) (*storage.BucketAttrs, error) {
	return b.h.Attrs(ctx)
}

// Update only applies if nobody changed the bucket since metageneration was read.
func (b bucketHandle) Update(ctx context.Context, metageneration int64, uattrs storage.BucketAttrsToUpdate) (*storage.BucketAttrs, error) {
	return b.h.If(storage.BucketConditions{MetagenerationMatch: metageneration}).Update(ctx, uattrs)
}

func (b bucketHandle) TestPermissions(ctx context.Context, perms []string) ([]string, error) {
	return b.h.IAM().TestPermissions(ctx, perms)
}

// PolicyStatus is the result of a bucket policy check.
type PolicyStatus struct {
	Bucket             string   `json:"bucket"`
	LifecycleCompliant bool     `json:"lifecycle_compliant"`
	LifecycleRules     []string `json:"lifecycle_rules"`
	GrantedPermissions []string `json:"granted_permissions"`
	MissingPermissions []string `json:"missing_permissions,omitempty"`
}

// Writable reports whether the caller may create objects.
func (s PolicyStatus) Writable() bool {
	return slices.Contains(s.GrantedPermissions, "storage.objects.create")
}

// OK reports whether the bucket satisfies the whole contract.
func (s PolicyStatus) OK() bool {
	return s.LifecycleCompliant && len(s.MissingPermissions) == 0
}

// BucketPolicy inspects and repairs one bucket.
type BucketPolicy struct {
	name   string
	bucket bucketAPI
}

// NewBucketPolicy creates a policy for the named bucket.
func NewBucketPolicy(client *storage.Client, name string) *BucketPolicy {
	return &BucketPolicy{name: name, bucket: bucketHandle{h: client.Bucket(name)}}
}

// Name is the bucket name.
func (p *BucketPolicy) Name() string {
	return p.name
}

// Check reads the bucket lifecycle and tests the caller's permissions.
func (p *BucketPolicy) Check(ctx context.Context) (PolicyStatus, error) {
	status := PolicyStatus{Bucket: p.name}

	attrs, err := p.bucket.Attrs(ctx)
	if err != nil {
		return status, fmt.Errorf("read bucket %s attrs: %w", p.name, err)
	}
	for _, r := range attrs.Lifecycle.Rules {
		status.LifecycleRules = append(status.LifecycleRules, describeRule(r))
	}
	status.LifecycleCompliant = hasExpiryRule(attrs.Lifecycle)

	granted, err := p.bucket.TestPermissions(ctx, RequiredPermissions)
	if err != nil {
		return status, fmt.Errorf("test bucket %s permissions: %w", p.name, err)
	}
	status.GrantedPermissions = granted
	for _, perm := range RequiredPermissions {
		if !slices.Contains(granted, perm) {
			status.MissingPermissions = append(status.MissingPermissions, perm)
		}
	}
	return status, nil
}

// EnsureLifecycle adds the 24 hour delete rule when it is missing, keeping
// any other rules. It reports whether the bucket was changed.
func (p *BucketPolicy) EnsureLifecycle(ctx context.Context) (bool, error) {
	attrs, err := p.bucket.Attrs(ctx)
	if err != nil {
		return false, fmt.Errorf("read bucket %s attrs: %w", p.name, err)
	}
	if hasExpiryRule(attrs.Lifecycle) {
		return false, nil
	}

	lc := storage.Lifecycle{Rules: append(slices.Clone(attrs.Lifecycle.Rules), ExpiryRule())}
	if _, err := p.bucket.Update(ctx, attrs.MetaGeneration, storage.BucketAttrsToUpdate{Lifecycle: &lc}); err != nil {
		return false, fmt.Errorf("update bucket %s lifecycle: %w", p.name, err)
	}
	return true, nil
}

// ExpiryRule deletes every object one day after creation.
func ExpiryRule() storage.LifecycleRule {
	return storage.LifecycleRule{
		Action:    storage.LifecycleAction{Type: storage.DeleteAction},
		Condition: storage.LifecycleCondition{AgeInDays: ExpiryAgeDays},
	}
}

// hasExpiryRule reports whether lc deletes all objects at ExpiryAgeDays.
// Rules scoped by prefix, suffix, storage class, version or custom time do not
// count.
func hasExpiryRule(lc storage.Lifecycle) bool {
	for _, r := range lc.Rules {
		if r.Action.Type != storage.DeleteAction {
			continue
		}
		c := r.Condition
		if c.AgeInDays != ExpiryAgeDays {
			continue
		}
		if len(c.MatchesPrefix) > 0 || len(c.MatchesSuffix) > 0 || len(c.MatchesStorageClasses) > 0 {
			continue
		}
		if !c.CreatedBefore.IsZero() || c.NumNewerVersions > 0 || c.Liveness == storage.Archived {
			continue
		}
		if c.DaysSinceCustomTime > 0 || !c.CustomTimeBefore.IsZero() ||
			c.DaysSinceNoncurrentTime > 0 || !c.NoncurrentTimeBefore.IsZero() {
			continue
		}
		return true
	}
	return false
}

func describeRule(r storage.LifecycleRule) string {
	s := r.Action.Type
	if r.Action.StorageClass != "" {
		s += "(" + r.Action.StorageClass + ")"
	}
	if r.Condition.AgeInDays > 0 {
		s += fmt.Sprintf(" age>=%dd", r.Condition.AgeInDays)
	}
	for _, p := range r.Condition.MatchesPrefix {
		s += " prefix=" + p
	}
	for _, sfx := range r.Condition.MatchesSuffix {
		s += " suffix=" + sfx
	}
	return s
}
