// Package services holds domain logic that spans aggregates: the immutable dispatch
// configuration, driver eligibility and the order dispatcher that ranks candidates
// and issues offers.
package services
