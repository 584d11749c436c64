package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"replaceguard/internal/target"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const blockManifest = `module example.com/m

go 1.22

replace (
	example.com/a => ../a
	example.com/b => example.com/b-fork v0.1.0
)
`

func TestScan_BlockForm(t *testing.T) {
	s := New(MapLoader{"go.mod": blockManifest})

	v := s.Scan(context.Background(), []string{"go.mod"})

	want := Verdict{
		Passed: false,
		Findings: []Finding{{
			Path:   "go.mod",
			Line:   6,
			Text:   "example.com/a => ../a",
			Reason: ReasonLocalOverride,
			Kind:   KindLocalOverride,
			Target: "../a",
			Shape:  target.ShapeRelative,
		}},
	}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
}

func TestScan_SingleLine(t *testing.T) {
	s := New(MapLoader{"go.mod": "module m\n\nreplace example.com/a => ../local-a\n"})

	v := s.Scan(context.Background(), []string{"go.mod"})

	require.Len(t, v.Findings, 1)
	assert.False(t, v.Passed)
	assert.Equal(t, 3, v.Findings[0].Line)
	assert.Equal(t, "replace example.com/a => ../local-a", v.Findings[0].Text)
}

func TestScan_CleanManifest(t *testing.T) {
	s := New(MapLoader{"go.mod": "replace example.com/a => example.com/a-fork v2.0.0\n"})

	v := s.Scan(context.Background(), []string{"go.mod"})

	assert.True(t, v.Passed)
	assert.Empty(t, v.Findings)
	assert.NotNil(t, v.Findings)
}

func TestScan_NoPaths(t *testing.T) {
	v := New(MapLoader{}).Scan(context.Background(), nil)
	assert.True(t, v.Passed)
}

func TestScan_CommentStripped(t *testing.T) {
	s := New(MapLoader{"go.mod": "replace example.com/a => ../a // dev only"})

	v := s.Scan(context.Background(), []string{"go.mod"})

	require.Len(t, v.Findings, 1)
	assert.Equal(t, "../a", v.Findings[0].Target)
}

func TestScan_CRLF(t *testing.T) {
	s := New(MapLoader{"go.mod": "module m\r\nreplace (\r\n\ta => ./a\r\n)\r\n"})

	v := s.Scan(context.Background(), []string{"go.mod"})

	require.Len(t, v.Findings, 1)
	assert.Equal(t, 3, v.Findings[0].Line)
	assert.Equal(t, "./a", v.Findings[0].Target)
}

func TestScan_MultiFile(t *testing.T) {
	loader := MapLoader{
		"a/go.mod": "replace example.com/x => example.com/x-fork v1.0.0\n",
		"b/go.mod": "replace example.com/y => /home/dev/y\n",
	}

	v := New(loader).Scan(context.Background(), []string{"a/go.mod", "b/go.mod"})

	require.Len(t, v.Findings, 1)
	assert.Equal(t, "b/go.mod", v.Findings[0].Path)
	assert.Equal(t, target.ShapePOSIXAbsolute, v.Findings[0].Shape)
}

func TestScan_LoadFailureDoesNotAbort(t *testing.T) {
	loader := MapLoader{
		"b/go.mod": "replace example.com/y => ~/y\n",
	}

	v := New(loader).Scan(context.Background(), []string{"missing/go.mod", "b/go.mod"})

	require.Len(t, v.Findings, 2)
	assert.False(t, v.Passed)
	assert.Equal(t, KindLoadFailure, v.Findings[0].Kind)
	assert.Equal(t, "missing/go.mod", v.Findings[0].Path)
	assert.Contains(t, v.Findings[0].Reason, ReasonLoadFailure)
	assert.Equal(t, KindLocalOverride, v.Findings[1].Kind)

	local, failures := v.Counts()
	assert.Equal(t, 1, local)
	assert.Equal(t, 1, failures)
}

func TestScan_LoadFailureAloneFails(t *testing.T) {
	loader := LoaderFunc(func(context.Context, string) (string, error) {
		return "", errors.New("permission denied")
	})

	v := New(loader).Scan(context.Background(), []string{"go.mod"})

	assert.False(t, v.Passed)
	require.Len(t, v.Findings, 1)
	assert.Equal(t, "failed to load manifest: permission denied", v.Findings[0].Reason)
}

func TestScan_Idempotent(t *testing.T) {
	s := New(MapLoader{"go.mod": blockManifest, "x/go.mod": "replace a => C:\\a\n"})
	paths := []string{"go.mod", "missing", "x/go.mod"}

	first := s.Scan(context.Background(), paths)
	second := s.Scan(context.Background(), paths)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated scan differs (-first +second):\n%s", diff)
	}
}

func TestScan_ConcurrentMatchesSequential(t *testing.T) {
	loader := MapLoader{}
	var paths []string
	for i := 0; i < 40; i++ {
		p := fmt.Sprintf("mod%02d/go.mod", i)
		paths = append(paths, p)
		if i%3 == 0 {
			loader[p] = fmt.Sprintf("replace (\n\texample.com/m%d => ../m%d\n\texample.com/r => example.com/r v1.0.0\n\texample.com/n%d => ./n\n)\n", i, i, i)
		} else if i%3 == 1 {
			loader[p] = "replace example.com/r => example.com/r v1.0.0\n"
		}
		// i%3 == 2 left missing to produce load failures.
	}

	seq := New(loader).Scan(context.Background(), paths)
	par := New(loader, WithJobs(8)).Scan(context.Background(), paths)

	if diff := cmp.Diff(seq, par); diff != "" {
		t.Errorf("concurrent scan differs (-seq +par):\n%s", diff)
	}
}

func TestScan_JobsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, path string) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return "", nil
	})

	paths := []string{"1", "2", "3", "4", "5", "6"}
	done := make(chan Verdict)
	go func() { done <- New(loader, WithJobs(2)).Scan(context.Background(), paths) }()
	close(release)
	v := <-done

	assert.True(t, v.Passed)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestScan_CustomClassifier(t *testing.T) {
	s := New(MapLoader{"go.mod": "replace a => $WORK/a\n"},
		WithClassifier(target.NewClassifier("$WORK/")))

	v := s.Scan(context.Background(), []string{"go.mod"})

	require.Len(t, v.Findings, 1)
	assert.Equal(t, target.ShapeCustom, v.Findings[0].Shape)
}

func TestScan_LogsMalformedAndUnterminated(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(MapLoader{"go.mod": "replace a =>\nreplace (\n\tb => ./b\n"}, WithLogger(zap.New(core)))

	v := s.Scan(context.Background(), []string{"go.mod"})

	require.Len(t, v.Findings, 1)
	assert.Equal(t, 3, v.Findings[0].Line)
	assert.Equal(t, 1, logs.FilterMessage("replace directive has no target").Len())
	assert.Equal(t, 1, logs.FilterMessage("replace block not closed before end of file").Len())
	assert.Equal(t, 1, logs.FilterMessage("scan finished").Len())
}

func TestScanText(t *testing.T) {
	got := New(nil).ScanText("inline", "replace a => ../a")
	require.Len(t, got, 1)
	assert.Equal(t, "inline", got[0].Path)
}

func TestMerge(t *testing.T) {
	a := Verdict{Passed: true, Findings: []Finding{}}
	b := Verdict{Findings: []Finding{{Path: "b", Kind: KindLocalOverride}}}

	assert.True(t, Merge(a).Passed)
	m := Merge(a, b)
	assert.False(t, m.Passed)
	assert.Equal(t, "b", m.Findings[0].Path)
	assert.True(t, Merge().Passed)
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "go.mod")
	bad := filepath.Join(dir, "bad.mod")
	require.NoError(t, os.WriteFile(good, []byte("module m\n"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xfe, 0x00}, 0644))

	var l FileLoader
	text, err := l.Load(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, "module m\n", text)

	_, err = l.Load(context.Background(), bad)
	assert.Error(t, err)

	_, err = l.Load(context.Background(), filepath.Join(dir, "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx, good)
	assert.ErrorIs(t, err, context.Canceled)
}
