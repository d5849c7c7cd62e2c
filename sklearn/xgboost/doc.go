// Package xgboost implements gradient-boosted regression trees trained with
// XGBoost's exact greedy algorithm.
//
// Trees are grown depth-first with second-order gradient statistics. Split
// gain and leaf weights include both L2 (reg_lambda) and L1 (reg_alpha)
// regularization, where the L1 term soft-thresholds the gradient sum:
//
//	T(G)   = sign(G) * max(|G| - alpha, 0)
//	weight = -T(G) / (H + lambda)
//	gain   = 1/2 * [T(GL)²/(HL+λ) + T(GR)²/(HR+λ) - T(G)²/(H+λ)] - gamma
//
// Only the squared-error objective ("reg:squarederror") is provided, with the
// base score initialised to the target mean.
//
// Example:
//
//	reg := xgboost.NewXGBRegressor().
//	    WithMaxDepth(5).
//	    WithNEstimators(100).
//	    WithLearningRate(0.1).
//	    WithRegAlpha(0.5)
//	if err := reg.Fit(X, y); err != nil {
//	    return err
//	}
//	yhat, err := reg.PredictOne([]float64{ask, atk, fuel})
package xgboost
