package main

import "github.com/dsolanki/cohortrev/cmd"

func main() {
	cmd.Execute()
}
