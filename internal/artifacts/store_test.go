package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audio"), logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create artifact store: %v", err)
	}
	return store
}

func TestSaveAndPathRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	ref, err := store.Save(strings.NewReader("fake audio bytes"), ".wav")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !strings.HasSuffix(ref, ".wav") {
		t.Errorf("ref %q should keep the extension", ref)
	}

	path, err := store.Path(ref)
	if err != nil {
		t.Fatalf("Path returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved artifact: %v", err)
	}
	if string(data) != "fake audio bytes" {
		t.Errorf("got content %q, want the saved bytes back", data)
	}
}

func TestSaveNormalizesExtension(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	ref, err := store.Save(strings.NewReader("x"), "ogg")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !strings.HasSuffix(ref, ".ogg") {
		t.Errorf("ref %q should end in .ogg", ref)
	}

	ref, err = store.Save(strings.NewReader("x"), "")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !strings.HasSuffix(ref, ".bin") {
		t.Errorf("ref %q should fall back to .bin", ref)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	for _, ref := range []string{"", "../secrets.txt", "a/b.wav"} {
		if _, err := store.Path(ref); err == nil {
			t.Errorf("Path(%q) should be rejected", ref)
		}
	}
}

func TestDeleteMissingIsNoError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if err := store.Delete("never-existed.wav"); err != nil {
		t.Errorf("Delete of missing artifact returned error: %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	var refs []string
	for i := 0; i < 3; i++ {
		ref, err := store.Save(strings.NewReader("x"), ".wav")
		if err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
		refs = append(refs, ref)
	}

	// A missing ref in the batch must not stop the rest.
	store.DeleteAll(append([]string{"gone.wav"}, refs...))

	for _, ref := range refs {
		path, _ := store.Path(ref)
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("artifact %q should be deleted", ref)
		}
	}
}
