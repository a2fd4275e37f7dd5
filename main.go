package main

import "github.com/papapumpkin/parsec/cmd"

func main() {
	cmd.Execute()
}
