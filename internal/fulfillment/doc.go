// Package fulfillment calls the webhook an assistant reply asks the client to
// invoke. The webhook URL comes from the reply context at
// skills["main skill"].user_defined.private.cloudfunctions.webhook and the
// parameters from the first client action's parameters.cloudFunction.
package fulfillment
