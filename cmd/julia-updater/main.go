package main

import "github.com/oshokin/julia-updater/cmd/julia-updater/cmd"

func main() {
	cmd.Execute()
}
