package wiki

import (
	"testing"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseSections(t *testing.T) {
	extract := "La Batalla de Boyacá fue decisiva.\n\n" +
		"== Antecedentes ==\nBolívar cruzó los Andes.\n\n" +
		"=== Paso del páramo ===\nEl ejército sufrió el frío.\n" +
		"== Referencias ==\n\n" +
		"== Legado ==\nSe celebra cada 7 de agosto.\n"

	sections := ParseSections(extract)

	assert.Equal(t, []domain.Section{
		{Name: domain.GeneralSection, Text: "La Batalla de Boyacá fue decisiva."},
		{Name: "Antecedentes", Text: "Bolívar cruzó los Andes."},
		{Name: "Paso del páramo", Text: "El ejército sufrió el frío."},
		{Name: "Legado", Text: "Se celebra cada 7 de agosto."},
	}, sections)
}

func TestParseSections_NoHeadings(t *testing.T) {
	sections := ParseSections("Solo un párrafo.")

	assert.Equal(t, []domain.Section{{Name: domain.GeneralSection, Text: "Solo un párrafo."}}, sections)
}

func TestParseSections_Empty(t *testing.T) {
	assert.Empty(t, ParseSections("  \n "))
}
