package main

import "github.com/Alexyn15/trangsucvn/cmd"

func main() {
	cmd.Execute()
}
