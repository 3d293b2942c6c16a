// Command cmscore serves the headless content API.
package main

func main() {
	Execute()
}
