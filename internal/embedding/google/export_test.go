package google

var Classify = classify
