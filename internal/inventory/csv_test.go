package inventory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"lototrak/internal/locks"
	"lototrak/internal/storage"
)

const sampleCSV = `name,location,code,procedures
Breaker 7,Hall B,BRK7,Verify isolation;Tag panel
Valve 3,Pump room,,Close valve; Bleed pressure ;
Spare lock,Storage,SPARE1,
`

func TestParse_UTF8(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Record{
		Name:       "Breaker 7",
		Location:   "Hall B",
		Code:       "BRK7",
		Procedures: []string{"Verify isolation", "Tag panel"},
	}, records[0])

	// Empty code means one gets generated on import; blank procedure cells
	// and trailing separators are dropped
	assert.Empty(t, records[1].Code)
	assert.Equal(t, []string{"Close valve", "Bleed pressure"}, records[1].Procedures)
	assert.Empty(t, records[2].Procedures)
}

func TestParse_UTF16BOM(t *testing.T) {
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.String(encoder, sampleCSV)
	require.NoError(t, err)

	records, err := Parse(strings.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Breaker 7", records[0].Name)
}

func TestParse_HeaderCaseInsensitive(t *testing.T) {
	records, err := Parse(strings.NewReader("NAME,Location\nBreaker 7,Hall B\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Breaker 7", records[0].Name)
	assert.Equal(t, "Hall B", records[0].Location)
}

func TestParse_MissingRequiredColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("name,code\nBreaker 7,BRK7\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required fields")
}

// importStore implements just enough of storage.Provider for lock creation.
type importStore struct {
	storage.Provider
	created []storage.Lock
}

func (s *importStore) CreateLock(ctx context.Context, lock storage.Lock) error {
	s.created = append(s.created, lock)
	return nil
}

func (s *importStore) CodeInUse(ctx context.Context, code string, excludeID string) (bool, error) {
	for _, lock := range s.created {
		if lock.AccessCode == code {
			return true, nil
		}
	}
	return false, nil
}

func TestImport_CreatesLocksAndSkipsBadRows(t *testing.T) {
	store := &importStore{}
	manager := locks.NewManager(store)
	actor := &storage.User{ID: "admin", Role: storage.RoleAdmin}

	records := []Record{
		{Name: "Breaker 7", Location: "Hall B", Code: "BRK7", Procedures: []string{"Tag panel"}},
		{Name: "Valve 3", Location: "Pump room"},
		{Name: "Duplicate", Location: "Hall B", Code: "BRK7"},
		{Name: "", Location: "Nowhere"},
	}

	result := Import(context.Background(), manager, actor, records)

	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, 4, result.Skipped[0].Line, "duplicate code row, 1-based counting the header")
	assert.ErrorIs(t, result.Skipped[0].Err, locks.ErrCodeInUse)
	assert.Equal(t, 5, result.Skipped[1].Line)
	assert.ErrorIs(t, result.Skipped[1].Err, locks.ErrMissingFields)

	require.Len(t, store.created, 2)
	assert.Equal(t, "BRK7", store.created[0].AccessCode)
	assert.NotEmpty(t, store.created[1].AccessCode, "generated code")
}
