// Package newsletter implements the subscriber lifecycle: subscribe,
// confirm, unsubscribe, list.
//
// The service layer owns token issuance and all state-transition rules. It
// depends on the repository and mailer interfaces defined in this package and
// should never import from api/.
//
// Repository implementations live in repository/postgres/; mailer
// implementations live in mailer/.
package newsletter
