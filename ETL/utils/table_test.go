package utils

import (
	"bytes"
	"testing"
)

func TestTableRender_AlignsByDisplayWidth(t *testing.T) {
	table := &Table{Header: []string{"provider", "facts"}}
	table.AddRow("Café Núñez", "3")
	table.AddRow("寿司", "12")
	table.AddRow("NorthCo")

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := "provider    facts\n" +
		"----------  -----\n" +
		"Café Núñez  3\n" +
		"寿司        12\n" +
		"NorthCo\n"
	if got := buf.String(); got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}
