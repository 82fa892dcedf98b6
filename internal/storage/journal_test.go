package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/saker-ai/spot-sdk/pkg/spot"
)

func TestJournalAppendAndGet(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatalf("NewJournal error: %v", err)
	}

	program := spot.Program{Name: "patrol", Commands: []spot.Command{spot.Stand(), spot.Walk(1, 0, 0), spot.Sit()}}
	entry, err := j.Append(spot.ProgramRecord{Program: program, Valid: true, SubmittedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}

	got, err := j.Get(entry.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Name != "patrol" || !got.Valid || !got.Submitted() {
		t.Fatalf("Get=%+v, want valid submitted patrol", got)
	}
	if len(got.Commands) != 3 {
		t.Fatalf("commands len=%d, want 3", len(got.Commands))
	}
	if got.Commands[1].Verb() != spot.VerbWalk {
		t.Fatalf("commands[1] verb=%s, want walk", got.Commands[1].Verb())
	}
	if x, _ := got.Commands[1].Arg("x"); x != 1 {
		t.Fatalf("commands[1] x=%v, want 1", x)
	}
}

func TestJournalKeepsFailedSubmission(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatalf("NewJournal error: %v", err)
	}
	rec := spot.ProgramRecord{
		Program: spot.Program{Name: "lost", Commands: []spot.Command{spot.Wait(2)}},
		Err:     errors.New("connection refused"),
	}
	if err := j.Record(rec); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	list := j.List()
	if len(list) != 1 {
		t.Fatalf("List len=%d, want 1", len(list))
	}
	if list[0].Submitted() {
		t.Fatal("Submitted()=true, want false for transport failure")
	}
	program := list[0].Program()
	if program.Name != "lost" || len(program.Commands) != 1 {
		t.Fatalf("Program()=%+v, want lost with one command", program)
	}
}

func TestJournalListNewestFirst(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatalf("NewJournal error: %v", err)
	}
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		rec := spot.ProgramRecord{Program: spot.Program{Name: name}, SubmittedAt: base.Add(time.Duration(i) * time.Minute)}
		if _, err := j.Append(rec); err != nil {
			t.Fatalf("Append(%s) error: %v", name, err)
		}
	}

	list := j.List()
	if len(list) != 3 {
		t.Fatalf("List len=%d, want 3", len(list))
	}
	if list[0].Name != "third" || list[2].Name != "first" {
		t.Fatalf("List order=%s,%s,%s, want third..first", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestJournalDeleteAndInvalidID(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJournal(dir)
	if err != nil {
		t.Fatalf("NewJournal error: %v", err)
	}
	entry, err := j.Append(spot.ProgramRecord{Program: spot.Program{Name: "tmp"}})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}

	if _, err := j.Get("../escape"); err == nil {
		t.Fatal("Get(../escape) error=nil, want non-nil")
	}
	if !j.Delete(entry.ID) {
		t.Fatal("Delete=false, want true")
	}
	if j.Delete(entry.ID) {
		t.Fatal("Delete twice=true, want false")
	}
	if _, err := os.Stat(filepath.Join(dir, entry.ID+".json")); !os.IsNotExist(err) {
		t.Fatalf("stat after delete err=%v, want not exist", err)
	}
}

func TestNewJournalEmptyDir(t *testing.T) {
	if _, err := NewJournal(" "); err == nil {
		t.Fatal("NewJournal(\" \") error=nil, want non-nil")
	}
}
