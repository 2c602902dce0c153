package main

import (
	"github.com/tokradar/tokradar/cmd"
)

func main() {
	cmd.Execute()
}
