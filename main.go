package main

import "github.com/bcwaterways/lakenet/cmd"

func main() {
	cmd.Execute()
}
