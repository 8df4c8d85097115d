package main

import (
	"github.com/foomo/formpersist/cmd"
)

func main() {
	cmd.Execute()
}
