package main

import (
	"github.com/imagespy/rpm-registry/cmd"
)

func main() {
	cmd.Execute()
}
