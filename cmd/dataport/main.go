package main

import "github.com/garagereg/dataport/cmd/dataport/cmd"

func main() {
	cmd.Execute()
}
