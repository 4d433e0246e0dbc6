package process

import (
	"path/filepath"
	"testing"
)

func TestWatchFilter(t *testing.T) {
	accept := watchFilter(".scoped")

	tests := []struct {
		path string
		want bool
	}{
		{"/w/style.css", true},
		{"/w/themes/dark.CSS", true},
		{"/w/style.scoped.css", false},
		{"/w/readme.md", false},
		{"/w/site.zip", false},
	}
	for _, tt := range tests {
		if got := accept(tt.path); got != tt.want {
			t.Errorf("accept(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestChangeHandler(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Overwrite = true

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	handle := changeHandler(srcDir, dstDir, env.Log)

	src := filepath.Join(srcDir, "themes", "dark.css")
	writeFile(t, src, "p { color: #eee; }")
	if err := handle(ctx, src); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	out := filepath.Join(dstDir, "themes", "dark.scoped.css")
	assertScoped(t, out, "p { color: #eee; }")

	// subsequent changes replace previous result
	writeFile(t, src, "p { color: #111; }")
	if err := handle(ctx, src); err != nil {
		t.Fatalf("second handle() error = %v", err)
	}
	assertScoped(t, out, "p { color: #111; }")
}

func TestChangeHandler_RemovedFile(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir := t.TempDir()
	handle := changeHandler(srcDir, srcDir, env.Log)
	if err := handle(ctx, filepath.Join(srcDir, "gone.css")); err != nil {
		t.Errorf("handle() for removed file error = %v", err)
	}
}
