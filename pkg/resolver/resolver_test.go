package resolver

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnumerator struct {
	windows []models.WindowInfo
	err     error
}

func (f *fakeEnumerator) Snapshot() ([]models.WindowInfo, error) {
	return f.windows, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func normalWindow(title string) models.WindowInfo {
	return models.WindowInfo{
		Title:       title,
		ClassName:   "AppMain",
		PID:         4321,
		ProcessName: "app.exe",
		ProcessPath: `C:\Program Files\App\app.exe`,
		Rect:        models.Rect{X: 120, Y: 80, Width: 1280, Height: 800},
		Visible:     true,
		TopLevel:    true,
	}
}

func TestResolveNoWindows(t *testing.T) {
	r := NewResolver(&fakeEnumerator{}, DefaultScoringConfig(), testLogger())

	res, err := r.Resolve(models.WindowDescriptor{ClassName: "AppMain"})
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Empty(t, res.Candidates)
}

func TestResolveEnumerationError(t *testing.T) {
	r := NewResolver(&fakeEnumerator{err: errors.New("boom")}, DefaultScoringConfig(), testLogger())

	res, err := r.Resolve(models.WindowDescriptor{})
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestResolveNoMatchReturnsDiagnostics(t *testing.T) {
	w := normalWindow("Other App")
	w.ClassName = "SomethingElse"

	r := NewResolver(&fakeEnumerator{windows: []models.WindowInfo{w}}, DefaultScoringConfig(), testLogger())

	res, err := r.Resolve(models.WindowDescriptor{ClassName: "AppMain"})
	require.NoError(t, err)
	assert.False(t, res.Found())
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, LayerClass, res.Rejections[0].Layer)
}

func TestRejectionLayerOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.WindowInfo)
		desc   models.WindowDescriptor
		layer  Layer
	}{
		{
			name:   "minimized fails visibility before anything else",
			mutate: func(w *models.WindowInfo) { w.Minimized = true; w.ClassName = "Wrong" },
			desc:   models.WindowDescriptor{ClassName: "AppMain"},
			layer:  LayerVisible,
		},
		{
			name:   "child window fails top-level",
			mutate: func(w *models.WindowInfo) { w.TopLevel = false },
			desc:   models.WindowDescriptor{ClassName: "AppMain"},
			layer:  LayerTopLevel,
		},
		{
			name:   "tool window rejected before title exclusion",
			mutate: func(w *models.WindowInfo) { w.ToolWindow = true; w.Title = "App - Monitor" },
			desc:   models.WindowDescriptor{ClassName: "AppMain", TitleNoneOf: []string{"Monitor"}},
			layer:  LayerToolWindow,
		},
		{
			name:   "wrong process name",
			mutate: func(w *models.WindowInfo) { w.ProcessName = "other.exe" },
			desc:   models.WindowDescriptor{ClassName: "AppMain", ProcessName: "app.exe"},
			layer:  LayerProcessName,
		},
		{
			name:   "process path substring missing",
			mutate: func(w *models.WindowInfo) { w.ProcessPath = `C:\Other\other.exe` },
			desc:   models.WindowDescriptor{ClassName: "AppMain", ProcessPathContains: `Program Files\App`},
			layer:  LayerProcessPath,
		},
		{
			name:   "excluded title keyword",
			mutate: func(w *models.WindowInfo) { w.Title = "App - Monitor" },
			desc:   models.WindowDescriptor{ClassName: "AppMain", TitleNoneOf: []string{"Monitor"}},
			layer:  LayerTitleExclude,
		},
		{
			name:   "required include keyword missing",
			mutate: func(w *models.WindowInfo) { w.Title = "Unrelated" },
			desc: models.WindowDescriptor{
				ClassName:         "AppMain",
				TitleAnyOf:        []string{"Home"},
				RequireTitleMatch: true,
			},
			layer: LayerTitleInclude,
		},
		{
			name:   "too small",
			mutate: func(w *models.WindowInfo) { w.Rect.Width = 200 },
			desc:   models.WindowDescriptor{ClassName: "AppMain", MinWidth: 400},
			layer:  LayerMinSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := normalWindow("App - Home")
			tt.mutate(&w)

			r := NewResolver(&fakeEnumerator{windows: []models.WindowInfo{w}}, DefaultScoringConfig(), testLogger())

			res, err := r.Resolve(tt.desc)
			require.NoError(t, err)
			assert.False(t, res.Found())
			require.Len(t, res.Rejections, 1)
			assert.Equal(t, tt.layer, res.Rejections[0].Layer)
		})
	}
}

func TestToolWindowRejectedAtStyleLayerNotExcludeLayer(t *testing.T) {
	// W1 is a tool-style monitor pane, W2 the real main window. W1 must be
	// attributed to the tool-window layer even though its title would also
	// hit the exclude list.
	w1 := normalWindow("App - Monitor")
	w1.ToolWindow = true
	w2 := normalWindow("App - Home")

	enum := &fakeEnumerator{windows: []models.WindowInfo{w1, w2}}
	r := NewResolver(enum, DefaultScoringConfig(), testLogger())

	res, err := r.Resolve(models.WindowDescriptor{
		ClassName:   "AppMain",
		TitleNoneOf: []string{"Monitor"},
	})
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, "App - Home", res.Window.Title)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, LayerToolWindow, res.Rejections[0].Layer)
}

func TestScoringKeywordMonotonicity(t *testing.T) {
	w1 := normalWindow("App")
	w2 := normalWindow("App - Home")
	w3 := normalWindow("App - Home Dashboard")

	desc := models.WindowDescriptor{TitleAnyOf: []string{"Home", "Dashboard"}}
	cfg := DefaultScoringConfig()
	r := NewResolver(&fakeEnumerator{}, cfg, testLogger())

	s1 := r.score(desc, w1)
	s2 := r.score(desc, w2)
	s3 := r.score(desc, w3)

	assert.Less(t, s1, s2)
	assert.Less(t, s2, s3)
	assert.Equal(t, cfg.KeywordBonus, s2-s1)
}

func TestScoringOffOriginAndSizeBonuses(t *testing.T) {
	anchored := normalWindow("App")
	anchored.Rect = models.Rect{X: 0, Y: 0, Width: 400, Height: 300}

	large := normalWindow("App")

	cfg := DefaultScoringConfig()
	r := NewResolver(&fakeEnumerator{}, cfg, testLogger())

	desc := models.WindowDescriptor{}
	assert.Equal(t, cfg.BaseScore, r.score(desc, anchored))
	assert.Equal(t, cfg.BaseScore+cfg.WidthBonus+cfg.HeightBonus+cfg.OffOriginBonus, r.score(desc, large))
}

func TestTiesBreakByEnumerationOrder(t *testing.T) {
	w1 := normalWindow("App - Home")
	w1.PID = 100
	w2 := normalWindow("App - Home")
	w2.PID = 200

	r := NewResolver(&fakeEnumerator{windows: []models.WindowInfo{w1, w2}}, DefaultScoringConfig(), testLogger())

	res, err := r.Resolve(models.WindowDescriptor{ClassName: "AppMain"})
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, int32(100), res.Window.PID)
}
