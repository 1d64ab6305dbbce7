package migrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigration_Validates(t *testing.T) {
	mig, err := NewMigration(7, "add_widgets")
	require.NoError(t, err)
	assert.Equal(t, 7, mig.Version())
	assert.Equal(t, "add_widgets", mig.Name())
	assert.Equal(t, SourceResource, mig.Source().Kind())
	assert.Equal(t, "007_add_widgets", mig.String())

	_, err = NewMigration(0, "zero")
	assert.ErrorIs(t, err, ErrInvalidMigration)
	_, err = NewMigration(-3, "negative")
	assert.ErrorIs(t, err, ErrInvalidMigration)
	_, err = NewMigration(1, "   ")
	assert.ErrorIs(t, err, ErrInvalidMigration)

	assert.Panics(t, func() { MustMigration(0, "x") })
}

func TestMigration_WithInlineSQL(t *testing.T) {
	base := MustMigration(1, "create_ledger")
	inline := base.WithInlineSQL("CREATE TABLE t (id INT)", "DROP TABLE t")

	assert.Equal(t, SourceResource, base.Source().Kind())
	assert.Equal(t, SourceInline, inline.Source().Kind())

	up, ok := inline.Source().Inline(DirectionUp)
	assert.True(t, ok)
	assert.Equal(t, "CREATE TABLE t (id INT)", up)

	down, ok := inline.Source().Inline(DirectionDown)
	assert.True(t, ok)
	assert.Equal(t, "DROP TABLE t", down)

	_, ok = base.Source().Inline(DirectionUp)
	assert.False(t, ok)

	assert.Equal(t, SourceResource, inline.WithSource(ResourceSQL()).Source().Kind())
}

func TestDirection_Valid(t *testing.T) {
	assert.True(t, DirectionUp.Valid())
	assert.True(t, DirectionDown.Valid())
	assert.False(t, Direction("sideways").Valid())
}

func TestMigrateOptions_EffectiveSteps(t *testing.T) {
	var nilOpts *MigrateOptions

	tests := []struct {
		name      string
		opts      *MigrateOptions
		available int
		want      int
	}{
		{"nil options", nilOpts, 4, 4},
		{"no limit", NewMigrateOptions(), 4, 4},
		{"limit below available", NewMigrateOptions().WithMaxSteps(1), 4, 1},
		{"limit above available", NewMigrateOptions().WithMaxSteps(10), 4, 4},
		{"zero", NewMigrateOptions().WithMaxSteps(0), 4, 0},
		{"negative", NewMigrateOptions().WithMaxSteps(-2), 4, 0},
		{"nothing available", NewMigrateOptions().WithMaxSteps(3), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.EffectiveSteps(tt.available))
		})
	}
}

func TestMigrateOptions_WithMaxStepsCopies(t *testing.T) {
	one := NewMigrateOptions().WithMaxSteps(1)
	two := one.WithMaxSteps(2)

	assert.Equal(t, 1, *one.MaxSteps)
	assert.Equal(t, 2, *two.MaxSteps)

	var nilOpts *MigrateOptions
	assert.Equal(t, 3, *nilOpts.WithMaxSteps(3).MaxSteps)
}

func TestRunResult(t *testing.T) {
	res := newRunResult(DirectionUp)
	assert.False(t, res.HasChanges())
	assert.Equal(t, 0, res.StepsApplied())
	assert.NotNil(t, res.Versions)

	res.Versions = append(res.Versions, 1, 2)
	assert.True(t, res.HasChanges())
	assert.Equal(t, 2, res.StepsApplied())
}
