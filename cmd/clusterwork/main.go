// Command clusterwork runs the front end of the work cluster and talks to a
// running front end from the command line.
package main

func main() {
	Execute()
}
