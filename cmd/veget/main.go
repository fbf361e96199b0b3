/*
Copyright © 2020 the VegET authors.
This file is part of VegET.

VegET is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

VegET is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with VegET.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command veget runs the VegET daily soil water balance model.
// Run 'veget help' for usage information.
package main

import (
	"fmt"
	"os"

	"github.com/ecolstat/VegET/vegetutil"
)

func main() {
	if err := vegetutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
