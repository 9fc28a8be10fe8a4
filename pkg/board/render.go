package board

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"
)

// Render draws a grid as text: ~ unknown, S ship, X hit, # sunk, O miss.
func Render(g Grid) string {
	var buffer bytes.Buffer
	tabWriter := tabwriter.NewWriter(&buffer, 2, 0, 1, ' ', 0)

	// Column numbers on the first line.
	fmt.Fprint(tabWriter, "\t")
	for x := 0; x < Size; x++ {
		fmt.Fprint(tabWriter, strconv.Itoa(x)+"\t")
	}
	fmt.Fprint(tabWriter, "\n")

	for y := 0; y < Size; y++ {
		fmt.Fprint(tabWriter, strconv.Itoa(y)+"\t")
		for x := 0; x < Size; x++ {
			switch g.CellState(Cell{X: x, Y: y}) {
			case CellShip:
				fmt.Fprint(tabWriter, "S\t")
			case CellHit:
				fmt.Fprint(tabWriter, "X\t")
			case CellSunk:
				fmt.Fprint(tabWriter, "#\t")
			case CellMiss:
				fmt.Fprint(tabWriter, "O\t")
			default:
				fmt.Fprint(tabWriter, "~\t")
			}
		}
		fmt.Fprint(tabWriter, "\n")
	}
	tabWriter.Flush()
	return buffer.String()
}
