package detector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudgen/crudgen/metadata"
)

func userModel() *metadata.ModelMeta {
	return &metadata.ModelMeta{
		Name:      "User",
		TableName: "users",
		IsTable:   true,
		Fields: []*metadata.FieldMeta{
			{Name: "id", Type: metadata.TypeInteger, PrimaryKey: true},
			{Name: "name", Type: metadata.TypeString, MaxLength: intPtr(100)},
			{Name: "created_at", Type: metadata.TypeDatetime, DefaultFunc: "time.Now"},
		},
		PrimaryKeys: []string{"id"},
	}
}

func postModel() *metadata.ModelMeta {
	return &metadata.ModelMeta{
		Name:      "Post",
		TableName: "posts",
		IsTable:   true,
		Fields: []*metadata.FieldMeta{
			{Name: "id", Type: metadata.TypeInteger, PrimaryKey: true},
			{Name: "title", Type: metadata.TypeString},
		},
		PrimaryKeys: []string{"id"},
	}
}

func intPtr(n int) *int { return &n }

func newDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), ".crudgen_snapshot.json"), nil)
	require.NoError(t, err)
	return d
}

func TestFirstRunReportsAllModelsAdded(t *testing.T) {
	d := newDetector(t)

	changes := d.DetectChanges([]*metadata.ModelMeta{userModel(), postModel()})
	assert.True(t, changes.HasChanges())
	assert.Equal(t, []string{"Post", "User"}, changes.AddedModels)
	assert.Empty(t, changes.RemovedModels)
	assert.Empty(t, changes.ModifiedModels)
}

func TestNoChangesAfterSave(t *testing.T) {
	d := newDetector(t)
	models := []*metadata.ModelMeta{userModel(), postModel()}
	require.NoError(t, d.SaveSnapshot(models))

	// reload from disk so comparison crosses the JSON round trip
	d2, err := New(d.Path(), nil)
	require.NoError(t, err)

	changes := d2.DetectChanges([]*metadata.ModelMeta{userModel(), postModel()})
	assert.False(t, changes.HasChanges())
	assert.Equal(t, "no changes detected", changes.Summary())
}

func TestAddedField(t *testing.T) {
	d := newDetector(t)
	require.NoError(t, d.SaveSnapshot([]*metadata.ModelMeta{userModel()}))

	d2, err := New(d.Path(), nil)
	require.NoError(t, err)

	updated := userModel()
	updated.Fields = append(updated.Fields, &metadata.FieldMeta{Name: "email", Type: metadata.TypeString, Unique: true})

	changes := d2.DetectChanges([]*metadata.ModelMeta{updated})
	require.Len(t, changes.ModifiedModels, 1)
	assert.Equal(t, []string{"email"}, changes.ModifiedModels[0].AddedFields)
	assert.Contains(t, changes.Summary(), "User.email")
}

func TestRemovedModel(t *testing.T) {
	d := newDetector(t)
	require.NoError(t, d.SaveSnapshot([]*metadata.ModelMeta{userModel(), postModel()}))

	d2, err := New(d.Path(), nil)
	require.NoError(t, err)

	changes := d2.DetectChanges([]*metadata.ModelMeta{userModel()})
	assert.Equal(t, []string{"Post"}, changes.RemovedModels)
	assert.Contains(t, changes.Summary(), "removed models (1): Post")
}

func TestModifiedFieldAttrs(t *testing.T) {
	d := newDetector(t)
	require.NoError(t, d.SaveSnapshot([]*metadata.ModelMeta{userModel()}))

	d2, err := New(d.Path(), nil)
	require.NoError(t, err)

	updated := userModel()
	updated.Fields[1].Nullable = true
	updated.Fields[1].MaxLength = intPtr(200)

	changes := d2.DetectChanges([]*metadata.ModelMeta{updated})
	require.Len(t, changes.ModifiedModels, 1)
	require.Len(t, changes.ModifiedModels[0].ModifiedFields, 1)

	fc := changes.ModifiedModels[0].ModifiedFields[0]
	assert.Equal(t, "name", fc.Name)
	attrs := map[string]bool{}
	for _, a := range fc.Attrs {
		attrs[a.Attr] = true
	}
	assert.True(t, attrs["nullable"])
	assert.True(t, attrs["max_length"])
	assert.False(t, attrs["field_type"])
}

func TestModifiedTableName(t *testing.T) {
	d := newDetector(t)
	require.NoError(t, d.SaveSnapshot([]*metadata.ModelMeta{userModel()}))

	d2, err := New(d.Path(), nil)
	require.NoError(t, err)

	updated := userModel()
	updated.TableName = "app_users"

	changes := d2.DetectChanges([]*metadata.ModelMeta{updated})
	require.Len(t, changes.ModifiedModels, 1)
	require.Len(t, changes.ModifiedModels[0].Attrs, 1)
	assert.Equal(t, "table_name", changes.ModifiedModels[0].Attrs[0].Attr)
}

func TestModifiedPrimaryKeySet(t *testing.T) {
	d := newDetector(t)
	require.NoError(t, d.SaveSnapshot([]*metadata.ModelMeta{postModel()}))

	d2, err := New(d.Path(), nil)
	require.NoError(t, err)

	updated := postModel()
	updated.PrimaryKeys = []string{"id", "title"}
	updated.Fields[1].PrimaryKey = true

	changes := d2.DetectChanges([]*metadata.ModelMeta{updated})
	require.Len(t, changes.ModifiedModels, 1)

	var attrs []string
	for _, a := range changes.ModifiedModels[0].Attrs {
		attrs = append(attrs, a.Attr)
	}
	assert.Contains(t, attrs, "primary_keys")
}

func TestNumericDefaultSurvivesRoundTrip(t *testing.T) {
	model := userModel()
	model.Fields[0].Default = int64(7)

	d := newDetector(t)
	require.NoError(t, d.SaveSnapshot([]*metadata.ModelMeta{model}))

	d2, err := New(d.Path(), nil)
	require.NoError(t, err)

	fresh := userModel()
	fresh.Fields[0].Default = int64(7)
	assert.False(t, d2.HasChanges([]*metadata.ModelMeta{fresh}))
}

func TestTimeDefaultSurvivesRoundTrip(t *testing.T) {
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	model := userModel()
	model.Fields[2].Default = stamp
	model.Fields[2].DefaultFunc = ""

	d := newDetector(t)
	require.NoError(t, d.SaveSnapshot([]*metadata.ModelMeta{model}))

	d2, err := New(d.Path(), nil)
	require.NoError(t, err)

	fresh := userModel()
	fresh.Fields[2].Default = stamp.In(time.FixedZone("CET", 3600))
	fresh.Fields[2].DefaultFunc = ""
	assert.False(t, d2.HasChanges([]*metadata.ModelMeta{fresh}))
}

func TestUndefinedAttrSkipped(t *testing.T) {
	old := &metadata.FieldMeta{Name: "blob", Type: metadata.TypeUnknown, Default: metadata.Undefined}
	current := &metadata.FieldMeta{Name: "blob", Type: metadata.TypeUnknown, Default: "actual"}
	assert.Empty(t, compareField(old, current))
}

func TestMalformedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path, nil)
	assert.Error(t, err)
}

func TestClearSnapshot(t *testing.T) {
	d := newDetector(t)
	require.NoError(t, d.SaveSnapshot([]*metadata.ModelMeta{userModel()}))
	require.NoError(t, d.ClearSnapshot())

	_, err := os.Stat(d.Path())
	assert.True(t, os.IsNotExist(err))

	changes := d.DetectChanges([]*metadata.ModelMeta{userModel()})
	assert.Equal(t, []string{"User"}, changes.AddedModels)

	// clearing an already-missing snapshot is fine
	require.NoError(t, d.ClearSnapshot())
}
