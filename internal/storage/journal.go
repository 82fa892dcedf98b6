package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saker-ai/spot-sdk/pkg/spot"
)

// Entry is one flushed program as written to disk.
type Entry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Commands    []spot.Command `json:"commands"`
	Valid       bool           `json:"valid"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt string         `json:"submitted_at"`
}

// Submitted reports whether the control server answered the submission.
func (e Entry) Submitted() bool {
	return e.Error == ""
}

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var safeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]+$`)

// Journal keeps a JSON file per flushed program so an authored program
// survives a failed submission.
type Journal struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewJournal executes the newJournal function.
func NewJournal(dir string) (*Journal, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("program journal dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Journal{dir: dir, now: time.Now}, nil
}

// Record implements spot.ProgramRecorder.
func (j *Journal) Record(rec spot.ProgramRecord) error {
	_, err := j.Append(rec)
	return err
}

// Append writes rec and returns the stored entry.
func (j *Journal) Append(rec spot.ProgramRecord) (Entry, error) {
	at := rec.SubmittedAt
	if at.IsZero() {
		at = j.now()
	}
	entry := Entry{
		ID:          at.UTC().Format("2006-01-02_15-04-05") + "_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:        rec.Program.Name,
		Commands:    rec.Program.Commands,
		Valid:       rec.Valid,
		SubmittedAt: at.UTC().Format(timeLayout),
	}
	if entry.Commands == nil {
		entry.Commands = []spot.Command{}
	}
	if rec.Err != nil {
		entry.Error = rec.Err.Error()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := writeEntry(filepath.Join(j.dir, entry.ID+".json"), entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Get reads one entry by id.
func (j *Journal) Get(id string) (Entry, error) {
	if !safeIDPattern.MatchString(id) {
		return Entry{}, errors.New("invalid journal id")
	}
	return readEntry(filepath.Join(j.dir, id+".json"))
}

// Delete removes an entry. It reports whether a file was removed.
func (j *Journal) Delete(id string) bool {
	if !safeIDPattern.MatchString(id) {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return os.Remove(filepath.Join(j.dir, id+".json")) == nil
}

// List returns every readable entry, newest first.
func (j *Journal) List() []Entry {
	list := []Entry{}
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return list
	}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		entry, err := readEntry(filepath.Join(j.dir, de.Name()))
		if err != nil {
			continue
		}
		list = append(list, entry)
	}

	sort.Slice(list, func(a, b int) bool {
		if list[a].SubmittedAt != list[b].SubmittedAt {
			return list[a].SubmittedAt > list[b].SubmittedAt
		}
		return list[a].ID > list[b].ID
	})
	return list
}

// Program rebuilds the submitted program, for resubmission.
func (e Entry) Program() spot.Program {
	commands := make([]spot.Command, len(e.Commands))
	copy(commands, e.Commands)
	return spot.Program{Name: e.Name, Commands: commands}
}

func readEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func writeEntry(path string, entry Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
