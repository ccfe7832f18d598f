/*
Copyright (C) 2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
/*
	onefile-go: a wait-free software transactional memory runtime

	https://github.com/launix-de/onefile-go

*/
package main

import (
	"fmt"
	"sync"

	"github.com/launix-de/onefile-go/stm"
)

func main() {
	fmt.Print(`onefile-go Copyright (C) 2026   Carl-Philip Hänsch
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)

	const numCells = 8
	const numWorkers = 8
	const itersPerWorker = 100000

	cells := make([]*stm.Cell[int64], numCells)
	for i := range cells {
		cells[i] = stm.NewCell(int64(0))
	}

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th, err := stm.Join()
			if err != nil {
				fmt.Println("stm: join failed:", err)
				return
			}
			defer th.Leave()
			for i := 0; i < itersPerWorker; i++ {
				stm.UpdateTx(th, func() bool {
					for _, c := range cells {
						stm.Add(th, c, 1)
					}
					return true
				})
			}
		}()
	}
	wg.Wait()

	th, err := stm.Join()
	if err != nil {
		fmt.Println("stm: join failed:", err)
		return
	}
	defer th.Leave()
	want := int64(numWorkers * itersPerWorker)
	for i, c := range cells {
		got := c.Load(th)
		fmt.Printf("cell[%d] = %d (want %d)\n", i, got, want)
		if got != want {
			fmt.Println("onefile-go: demo detected a lost update, which should never happen")
		}
	}
}
