package graph

import (
	"context"
	"errors"
	"testing"
)

func newDir(id int, path string, parent *Item) *Item {
	it := NewItem(id, path)
	it.IsDir = true
	if parent == nil {
		it.IsRoot = true
	} else {
		it.SetParent(parent)
	}
	return it
}

func TestMemoryStore_AddAndGetItem(t *testing.T) {
	store := NewMemoryStore()
	root := newDir(0, "phone.ufdr", nil)
	if err := store.Add(root); err != nil {
		t.Fatalf("Add(root) returned error: %v", err)
	}

	item, err := store.GetItem("phone.ufdr")
	if err != nil {
		t.Fatalf("GetItem returned error: %v", err)
	}
	if !item.IsRoot || !item.IsDir {
		t.Error("root should be a root directory")
	}
}

func TestMemoryStore_GetItemNormalizesLeadingSlash(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Add(newDir(0, "foo", nil)); err != nil {
		t.Fatal(err)
	}

	item, err := store.GetItem("/foo")
	if err != nil {
		t.Fatalf("GetItem(/foo) should resolve to foo: %v", err)
	}
	if item.Path != "foo" {
		t.Errorf("Path = %q, want %q", item.Path, "foo")
	}
}

func TestMemoryStore_GetItemNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.GetItem("nonexistent"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_RejectsOrphans(t *testing.T) {
	store := NewMemoryStore()
	orphan := NewItem(3, "root/missing/file.txt")
	orphan.ParentPath = "root/missing"

	err := store.Add(orphan)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_RejectsDuplicatePaths(t *testing.T) {
	store := NewMemoryStore()
	root := newDir(0, "root", nil)
	if err := store.Add(root); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(newDir(1, "root/a", root)); err != nil {
		t.Fatal(err)
	}
	err := store.Add(newDir(2, "root/a", root))
	if !errors.Is(err, ErrDuplicatePath) {
		t.Errorf("err = %v, want ErrDuplicatePath", err)
	}
}

func TestMemoryStore_ChildrenInEmissionOrder(t *testing.T) {
	store := NewMemoryStore()
	root := newDir(0, "root", nil)
	a := newDir(1, "root/a", root)
	b := newDir(2, "root/b", root)
	for _, it := range []*Item{root, b, a} {
		if err := store.Add(it); err != nil {
			t.Fatal(err)
		}
	}

	children, err := store.ListChildren("root")
	if err != nil {
		t.Fatalf("ListChildren returned error: %v", err)
	}
	if len(children) != 2 || children[0] != "root/b" || children[1] != "root/a" {
		t.Errorf("children = %v, want [root/b root/a]", children)
	}
}

func TestMemoryStore_CategoryAndDeletedIndexes(t *testing.T) {
	store := NewMemoryStore()
	root := newDir(0, "root", nil)
	cfg := NewItem(1, "root/settings.plist")
	cfg.SetParent(root)
	cfg.Category = "Configuration"
	gone := NewItem(2, "root/old.db")
	gone.SetParent(root)
	gone.IsDeleted = true
	for _, it := range []*Item{root, cfg, gone} {
		if err := store.Add(it); err != nil {
			t.Fatal(err)
		}
	}

	if got := store.ByCategory("Configuration"); len(got) != 1 || got[0] != "root/settings.plist" {
		t.Errorf("ByCategory = %v", got)
	}
	if got := store.Deleted(); len(got) != 1 || got[0] != "root/old.db" {
		t.Errorf("Deleted = %v", got)
	}
	if got := store.ByCategory("Nope"); got != nil {
		t.Errorf("ByCategory(Nope) = %v, want nil", got)
	}
}

func TestMemoryStore_ReadContentThroughResolver(t *testing.T) {
	store := NewMemoryStore()
	root := newDir(0, "root", nil)
	file := NewItem(1, "root/note.txt")
	file.SetParent(root)
	file.Content = &ContentRef{Kind: ContentFile, Path: "files/note.txt"}
	for _, it := range []*Item{root, file} {
		if err := store.Add(it); err != nil {
			t.Fatal(err)
		}
	}

	calls := 0
	store.SetResolver(func(it *Item) ([]byte, error) {
		calls++
		return []byte("hello world"), nil
	})

	buf := make([]byte, 5)
	n, err := store.ReadContent("root/note.txt", buf, 6)
	if err != nil {
		t.Fatalf("ReadContent returned error: %v", err)
	}
	if string(buf[:n]) != "world" {
		t.Errorf("content = %q, want %q", buf[:n], "world")
	}
	if _, err := store.ReadContent("root/note.txt", buf, 0); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("resolver calls = %d, want 1 (cached)", calls)
	}

	// Directories have no content.
	n, err = store.ReadContent("root", buf, 0)
	if err != nil || n != 0 {
		t.Errorf("ReadContent(root) = %d, %v; want 0, nil", n, err)
	}
}

func TestMemoryStore_SubmitHonorsCancellation(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Submit(ctx, newDir(0, "root", nil)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(store.Items()) != 0 {
		t.Error("cancelled submit must not store the item")
	}
}

func TestMemoryStore_Counters(t *testing.T) {
	store := NewMemoryStore()
	store.IncDiscoveredCount(2)
	store.IncDiscoveredCount(3)
	store.IncDiscoveredVolume(1024)

	if store.DiscoveredCount() != 5 {
		t.Errorf("DiscoveredCount = %d, want 5", store.DiscoveredCount())
	}
	if store.DiscoveredVolume() != 1024 {
		t.Errorf("DiscoveredVolume = %d, want 1024", store.DiscoveredVolume())
	}
	if store.ContainsBlindReportMode() {
		t.Error("blind report mode should default to off")
	}
	store.SetBlindReport(true)
	if !store.ContainsBlindReportMode() {
		t.Error("blind report mode should be on")
	}
}

func TestItem_ClearContent(t *testing.T) {
	it := NewItem(7, "root/decoded/Attachment_7")
	it.MediaType = "application/x-ufed-attachment"
	it.SkipHash = true
	it.Content = &ContentRef{Kind: ContentMetadata}

	it.ClearContent()

	if it.Content != nil || it.MediaType != "" || it.SkipHash {
		t.Errorf("ClearContent left %+v", it)
	}
	if it.Name != "Attachment_7" {
		t.Errorf("Name = %q, want Attachment_7", it.Name)
	}
}
