package main

import "github.com/guimove/replanner/cmd"

func main() {
	cmd.Execute()
}
