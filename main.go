package main

import "github.com/jguecaimburu/colppy-to-gsheets/cmd"

func main() {
	cmd.Execute()
}
