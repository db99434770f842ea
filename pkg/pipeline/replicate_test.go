package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRegional struct {
	region string
	copy   func(ctx context.Context, sourceImageID, sourceRegion, name string, public bool) (string, error)
}

func (f *fakeRegional) CopyImageFrom(ctx context.Context, sourceImageID, sourceRegion, name string, public bool) (string, error) {
	return f.copy(ctx, sourceImageID, sourceRegion, name, public)
}

// regionalFromMap builds a RegionalComputeFunc returning the canned image id
// or error configured per region.
func regionalFromMap(ids map[string]string, errs map[string]error) RegionalComputeFunc {
	return func(ctx context.Context, region string) (RegionalCompute, error) {
		return &fakeRegional{
			region: region,
			copy: func(ctx context.Context, sourceImageID, sourceRegion, name string, public bool) (string, error) {
				if err := errs[region]; err != nil {
					return "", err
				}
				return ids[region], nil
			},
		}, nil
	}
}

func TestReplicate_Completeness(t *testing.T) {
	ids := map[string]string{
		"eu-west-1":  "ami-a",
		"us-west-2":  "ami-b",
		"ap-south-1": "ami-c",
	}
	m := NewMachine(nil, nil, regionalFromMap(ids, nil), nil, 1, 4)

	images, err := m.replicate(context.Background(), "ami-src", "nixos-x86_64-linux.42", "us-east-1",
		[]string{"eu-west-1", "us-west-2", "ap-south-1"}, false)
	if err != nil {
		t.Fatalf("replication failed: %v", err)
	}

	if len(images) != 4 {
		t.Fatalf("expected 4 entries (source + 3 targets), got %d: %v", len(images), images)
	}
	if images["us-east-1"] != "ami-src" {
		t.Errorf("source entry must hold the original image id, got %q", images["us-east-1"])
	}
	for region, want := range ids {
		if images[region] != want {
			t.Errorf("region %s: got %q, want %q", region, images[region], want)
		}
	}
}

func TestReplicate_PartialFailureSurfaced(t *testing.T) {
	ids := map[string]string{"eu-west-1": "ami-a", "ap-south-1": "ami-c"}
	errs := map[string]error{"us-west-2": fmt.Errorf("copy quota exceeded")}
	m := NewMachine(nil, nil, regionalFromMap(ids, errs), nil, 1, 1)

	images, err := m.replicate(context.Background(), "ami-src", "name", "us-east-1",
		[]string{"eu-west-1", "us-west-2", "ap-south-1"}, false)
	if err == nil {
		t.Fatalf("expected failure, got map %v", images)
	}
	if images != nil {
		t.Error("a partial map must not be returned on failure")
	}
	if !strings.Contains(err.Error(), "us-west-2") {
		t.Errorf("error must identify the failing region, got: %v", err)
	}
}

func TestReplicate_BoundedConcurrency(t *testing.T) {
	const limit = 2

	var inFlight, peak int64
	var mu sync.Mutex

	regional := func(ctx context.Context, region string) (RegionalCompute, error) {
		return &fakeRegional{
			region: region,
			copy: func(ctx context.Context, sourceImageID, sourceRegion, name string, public bool) (string, error) {
				cur := atomic.AddInt64(&inFlight, 1)
				mu.Lock()
				if cur > peak {
					peak = cur
				}
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return "ami-" + region, nil
			},
		}, nil
	}

	m := NewMachine(nil, nil, regional, nil, 1, limit)
	targets := []string{"r1", "r2", "r3", "r4", "r5", "r6"}

	images, err := m.replicate(context.Background(), "ami-src", "name", "src-region", targets, false)
	if err != nil {
		t.Fatalf("replication failed: %v", err)
	}
	if len(images) != len(targets)+1 {
		t.Errorf("expected %d entries, got %d", len(targets)+1, len(images))
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > limit {
		t.Errorf("concurrency bound violated: peak %d > limit %d", peak, limit)
	}
}

func TestReplicate_CancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{}, 1)
	regional := func(_ context.Context, region string) (RegionalCompute, error) {
		return &fakeRegional{
			region: region,
			copy: func(ctx context.Context, sourceImageID, sourceRegion, name string, public bool) (string, error) {
				select {
				case started <- struct{}{}:
				default:
				}
				<-ctx.Done()
				return "", ctx.Err()
			},
		}, nil
	}

	m := NewMachine(nil, nil, regional, nil, 1, 4)

	done := make(chan error, 1)
	go func() {
		_, err := m.replicate(ctx, "ami-src", "name", "src", []string{"r1", "r2"}, false)
		done <- err
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error after cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("replication did not abort after cancellation")
	}
}

func TestReplicate_NoTargets(t *testing.T) {
	m := NewMachine(nil, nil, regionalFromMap(nil, nil), nil, 1, 4)

	images, err := m.replicate(context.Background(), "ami-src", "name", "us-east-1", nil, false)
	if err != nil {
		t.Fatalf("replication failed: %v", err)
	}
	if len(images) != 1 || images["us-east-1"] != "ami-src" {
		t.Errorf("expected only the source entry, got %v", images)
	}
}
