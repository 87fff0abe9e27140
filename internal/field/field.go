package field

import "fmt"

// Field is one gridded variable for a single forecast initialization,
// stored dense and member-major: Data[(m*len(Leads)+l)*Cells+c].
// Leads carries the labels of the lead axis; after binning they are the
// window labels 0..n-1.
type Field struct {
	Members int
	Leads   []int
	Cells   int
	Data    []float64
}

// New allocates a zeroed field with the given shape.
func New(members int, leads []int, cells int) *Field {
	return &Field{
		Members: members,
		Leads:   append([]int(nil), leads...),
		Cells:   cells,
		Data:    make([]float64, members*len(leads)*cells),
	}
}

func (f *Field) At(m, l, c int) float64 {
	return f.Data[(m*len(f.Leads)+l)*f.Cells+c]
}

func (f *Field) Set(m, l, c int, v float64) {
	f.Data[(m*len(f.Leads)+l)*f.Cells+c] = v
}

// Validate fails fast on shape mismatches before any reduction runs.
func (f *Field) Validate() error {
	if f.Members < 1 {
		return fmt.Errorf("field: %d members, want at least 1", f.Members)
	}
	if len(f.Leads) == 0 {
		return fmt.Errorf("field: empty lead axis")
	}
	if f.Cells < 1 {
		return fmt.Errorf("field: %d cells, want at least 1", f.Cells)
	}
	if want := f.Members * len(f.Leads) * f.Cells; len(f.Data) != want {
		return fmt.Errorf("field: %d values for %dx%dx%d shape, want %d",
			len(f.Data), f.Members, len(f.Leads), f.Cells, want)
	}
	return nil
}
