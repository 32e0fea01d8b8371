package main

import "github.com/papapumpkin/buildscript/cmd"

func main() {
	cmd.Execute()
}
