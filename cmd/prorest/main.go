package main

import (
	"github.com/gwaycc/prorest"
)

func main() {
	prorest.Run()
}
