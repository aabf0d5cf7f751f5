package registry_test

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/registry"
)

func TestCreateTemplate_UpsertOnNameVersion(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	tpl, err := s.CreateTemplate(clock, "ml-base", "1.0.0", "3.11")
	require.NoError(t, err)
	assert.Equal(t, "3.11", tpl.PythonVersion)

	clock.Advance(1)
	updated, err := s.CreateTemplate(clock, "ml-base", "1.0.0", "3.12")
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, updated.ID)
	assert.Equal(t, "3.12", updated.PythonVersion)

	all, err := s.ListTemplatesWithPackages()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLookupTemplate_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LookupTemplate("ghost", "1.0.0")
	assertNotFound(t, err)
}

func TestTemplatePackages_AddRemoveListOrdered(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	tpl, err := s.CreateTemplate(clock, "ml-base", "1.0.0", "3.11")
	require.NoError(t, err)

	require.NoError(t, s.AddTemplatePackage(tpl.ID, registry.TemplatePackage{
		PackageName: "torch", Version: "2.1.0", StepIndex: 1,
	}))
	require.NoError(t, s.AddTemplatePackage(tpl.ID, registry.TemplatePackage{
		PackageName: "numpy", Version: "1.26.0", StepIndex: 0,
	}))

	packages, err := s.ListTemplatePackages(tpl.ID)
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "numpy", packages[0].PackageName)
	assert.Equal(t, "torch", packages[1].PackageName)

	require.NoError(t, s.RemoveTemplatePackage(tpl.ID, "numpy"))
	packages, err = s.ListTemplatePackages(tpl.ID)
	require.NoError(t, err)
	assert.Len(t, packages, 1)
}

func TestDeleteTemplate_CascadesPackages(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	tpl, err := s.CreateTemplate(clock, "ml-base", "1.0.0", "3.11")
	require.NoError(t, err)
	require.NoError(t, s.AddTemplatePackage(tpl.ID, registry.TemplatePackage{PackageName: "torch", Version: "2.1.0"}))

	require.NoError(t, s.DeleteTemplate("ml-base", "1.0.0"))

	all, err := s.ListTemplatesWithPackages()
	require.NoError(t, err)
	assert.Empty(t, all)
}
