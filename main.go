package main

import "github.com/nextlevelbuilder/dispatchd/cmd"

func main() {
	cmd.Execute()
}
