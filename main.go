package main

import "github.com/nextlevelbuilder/teleops/cmd"

func main() {
	cmd.Execute()
}
