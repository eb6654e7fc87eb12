// Package model implements the AR(P) generative model with latent imputation
// of missing observations and a horseshoe prior over the lag coefficients.
//
// The parameter vector is laid out as
//
//	alpha, beta[1..P], tau, lambda[1..P], sigma, y[t] for each missing t
//
// where y[t] is the latent value of the missing observation at index t.
// LogPrior and LogLikelihood are pure functions of the parameter vector and
// the reconstructed series; they are what a sampling backend evaluates.
package model
