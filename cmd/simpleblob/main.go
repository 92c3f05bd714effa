package main

import (
	"github.com/tendant/simple-blob/cmd/simpleblob/commands"
)

func main() {
	commands.Execute()
}
