package main

import "github.com/javi11/metadatarr/cmd/metadatarr/cmd"

func main() {
	cmd.Execute()
}
