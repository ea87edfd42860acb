package main

import (
	"github.com/BioHazard786/Deskrelay/cmd"
	"github.com/BioHazard786/Deskrelay/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
