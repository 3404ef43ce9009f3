package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen(t *testing.T) {
	st := openTest(t)

	for _, table := range []string{"prefs", "records"} {
		var name string
		err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("%s table not created: %v", table, err)
		}
	}
}

func TestPrefs(t *testing.T) {
	st := openTest(t)

	if _, ok, err := st.GetPref(PrefAccessToken); err != nil || ok {
		t.Fatalf("GetPref on empty store = ok:%v err:%v", ok, err)
	}

	if err := st.SetPref(PrefLanguage, "es"); err != nil {
		t.Fatalf("SetPref: %v", err)
	}
	if err := st.SetPref(PrefLanguage, "pt"); err != nil {
		t.Fatalf("SetPref overwrite: %v", err)
	}
	v, ok, err := st.GetPref(PrefLanguage)
	if err != nil || !ok || v != "pt" {
		t.Errorf("GetPref = %q, %v, %v; want pt", v, ok, err)
	}

	if err := st.DeletePref(PrefLanguage); err != nil {
		t.Fatalf("DeletePref: %v", err)
	}
	if _, ok, _ := st.GetPref(PrefLanguage); ok {
		t.Error("pref should be gone after delete")
	}
	if err := st.DeletePref("missing"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestInsertAndGetRecord(t *testing.T) {
	st := openTest(t)

	rec, err := st.InsertRecord("catalogs/hotel", map[string]any{"name": "Hotel Azul", "stars": float64(4), "id": "ignored"})
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if rec.ID == "" || rec.ID == "ignored" {
		t.Errorf("ID = %q, want fresh uuid", rec.ID)
	}
	if rec.Status != 1 {
		t.Errorf("Status = %d, want 1", rec.Status)
	}
	if rec.Label != "Hotel Azul" {
		t.Errorf("Label = %q", rec.Label)
	}

	got, err := st.GetRecord("catalogs/hotel", rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Data["stars"] != float64(4) {
		t.Errorf("stars = %v", got.Data["stars"])
	}

	if _, err := st.GetRecord("catalogs/region", rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRecord other resource err = %v, want ErrNotFound", err)
	}
}

func TestUpdateRecordMerges(t *testing.T) {
	st := openTest(t)

	rec, _ := st.InsertRecord("catalogs/hotel", map[string]any{"name": "A", "city": "CDMX"})
	updated, err := st.UpdateRecord("catalogs/hotel", rec.ID, map[string]any{"name": "B", "status": float64(0)})
	if err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	if updated.Label != "B" || updated.Status != 0 {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Data["city"] != "CDMX" {
		t.Errorf("untouched field lost: %v", updated.Data)
	}

	if _, err := st.UpdateRecord("catalogs/hotel", "nope", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetStatus(t *testing.T) {
	st := openTest(t)

	rec, _ := st.InsertRecord("catalogs/hotel", map[string]any{"name": "A"})
	for _, code := range []int{0, 1, 2, 3} {
		if err := st.SetStatus("catalogs/hotel", rec.ID, code); err != nil {
			t.Fatalf("SetStatus(%d): %v", code, err)
		}
		got, _ := st.GetRecord("catalogs/hotel", rec.ID)
		if got.Status != code {
			t.Errorf("Status = %d, want %d", got.Status, code)
		}
	}
	if err := st.SetStatus("catalogs/hotel", "nope", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRecordsPaging(t *testing.T) {
	st := openTest(t)

	for i := 0; i < 25; i++ {
		if _, err := st.InsertRecord("catalogs/region", map[string]any{"name": fmt.Sprintf("Region %02d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	st.InsertRecord("catalogs/hotel", map[string]any{"name": "other resource"})

	tests := []struct {
		name      string
		opts      ListOptions
		wantLen   int
		wantTotal int
		wantFirst string
	}{
		{"first page", ListOptions{Resource: "catalogs/region", Limit: 10}, 10, 25, "Region 00"},
		{"offset 20", ListOptions{Resource: "catalogs/region", Limit: 10, Offset: 20}, 5, 25, "Region 20"},
		{"no limit", ListOptions{Resource: "catalogs/region"}, 25, 25, "Region 00"},
		{"search", ListOptions{Resource: "catalogs/region", Search: "gion 1"}, 10, 10, "Region 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, total, err := st.ListRecords(tt.opts)
			if err != nil {
				t.Fatalf("ListRecords: %v", err)
			}
			if len(recs) != tt.wantLen || total != tt.wantTotal {
				t.Errorf("len=%d total=%d, want %d/%d", len(recs), total, tt.wantLen, tt.wantTotal)
			}
			if len(recs) > 0 && recs[0].Label != tt.wantFirst {
				t.Errorf("first = %q, want %q", recs[0].Label, tt.wantFirst)
			}
		})
	}
}

func TestListRecordsWhere(t *testing.T) {
	st := openTest(t)

	a, _ := st.InsertRecord("clients/client", map[string]any{"name": "A", "segment": "corp"})
	st.InsertRecord("clients/client", map[string]any{"name": "B", "segment": "leisure"})
	st.SetStatus("clients/client", a.ID, 0)

	recs, total, err := st.ListRecords(ListOptions{Resource: "clients/client", Where: map[string]string{"segment": "corp"}})
	if err != nil || total != 1 || recs[0].Label != "A" {
		t.Errorf("segment filter = %v total=%d err=%v", recs, total, err)
	}

	_, total, _ = st.ListRecords(ListOptions{Resource: "clients/client", Where: map[string]string{"status": "1"}})
	if total != 1 {
		t.Errorf("status filter total = %d, want 1", total)
	}

	if _, _, err := st.ListRecords(ListOptions{Resource: "clients/client", Where: map[string]string{"x') OR 1=1 --": "1"}}); err == nil {
		t.Error("expected error for bad field name")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := openTest(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := st.InsertRecord("catalogs/hotel", map[string]any{"name": fmt.Sprintf("h%d", n)}); err != nil {
				t.Errorf("insert: %v", err)
			}
			if _, _, err := st.ListRecords(ListOptions{Resource: "catalogs/hotel", Limit: 5}); err != nil {
				t.Errorf("list: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n, _ := st.CountRecords("catalogs/hotel"); n != 10 {
		t.Errorf("CountRecords = %d, want 10", n)
	}
}
