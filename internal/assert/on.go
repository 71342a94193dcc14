//go:build tilefxdebug

package assert

const enabled = true
