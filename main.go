// Public domain.

package main

import "github.com/cuantar/timing-analysis/internal/tprog"

func main() {
	tprog.Main()
}
